package repository

import (
	"context"

	"github.com/anime-shed/blur-inspector-go/internal/decode"
	"github.com/anime-shed/blur-inspector-go/internal/storage"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// SourceImageRepository implements ImageRepository on top of an image source
type SourceImageRepository struct {
	source  storage.ImageSource
	decoder *decode.Decoder
}

// NewSourceImageRepository creates an image repository reading from source
func NewSourceImageRepository(source storage.ImageSource, decoder *decode.Decoder) *SourceImageRepository {
	if decoder == nil {
		decoder = decode.NewDecoder(decode.DefaultMaxPixels)
	}
	return &SourceImageRepository{
		source:  source,
		decoder: decoder,
	}
}

// FetchImage retrieves an image from a location and decodes it
func (r *SourceImageRepository) FetchImage(ctx context.Context, location string) (*decode.Result, []byte, error) {
	data, err := r.source.Fetch(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	result, err := r.decoder.Decode(data)
	if err != nil {
		return nil, data, err
	}
	return result, data, nil
}

// GetImageMetadata fetches the image and reads only its header
func (r *SourceImageRepository) GetImageMetadata(ctx context.Context, location string) (*models.ImageMetadata, error) {
	data, err := r.source.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	cfg, format, err := r.decoder.Config(data)
	if err != nil {
		return nil, err
	}
	return &models.ImageMetadata{
		ContentLength: int64(len(data)),
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
	}, nil
}
