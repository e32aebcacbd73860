package repository

import (
	"context"

	"github.com/anime-shed/blur-inspector-go/internal/decode"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

const (
	// DefaultHistoryLimit is used when a caller passes a non-positive limit
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps the number of records returned by History
	MaxHistoryLimit = 100
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves and decodes an image, returning the raw bytes alongside
	FetchImage(ctx context.Context, location string) (*decode.Result, []byte, error)

	// GetImageMetadata retrieves size and format without a full decode
	GetImageMetadata(ctx context.Context, location string) (*models.ImageMetadata, error)
}

// AnalysisRepository defines the interface for analysis result operations
type AnalysisRepository interface {
	// Save stores a record, assigning an ID when it has none
	Save(ctx context.Context, record *models.AnalysisRecord) error

	// Get retrieves a stored record
	Get(ctx context.Context, id string) (*models.AnalysisRecord, error)

	// History returns the most recent records for a fingerprint, newest first
	History(ctx context.Context, fingerprint string, limit int) ([]*models.AnalysisRecord, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}
