package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/blur-inspector-go/internal/blur"
	"github.com/anime-shed/blur-inspector-go/internal/decode"
	apperrors "github.com/anime-shed/blur-inspector-go/internal/errors"
	"github.com/anime-shed/blur-inspector-go/internal/fingerprint"
	"github.com/anime-shed/blur-inspector-go/internal/logger"
	"github.com/anime-shed/blur-inspector-go/internal/metadata"
	"github.com/anime-shed/blur-inspector-go/internal/observer"
	"github.com/anime-shed/blur-inspector-go/internal/repository"
	"github.com/anime-shed/blur-inspector-go/internal/storage"
	"github.com/anime-shed/blur-inspector-go/internal/worker"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
	"github.com/anime-shed/blur-inspector-go/pkg/validation"
)

// UploadSource labels images that arrive as raw bytes
const UploadSource = "upload"

// Config holds the service defaults that requests may override
type Config struct {
	Options         blur.Options
	MaxDimension    int
	AnalysisTimeout time.Duration
	// AllowedSchemes limits which locations ClassifyLocation accepts
	AllowedSchemes []string
}

// BlurDetectionService fetches, decodes and classifies images and keeps a
// history of the results
type BlurDetectionService struct {
	images    repository.ImageRepository
	analyses  repository.AnalysisRepository
	decoder   *decode.Decoder
	pool      *worker.WorkerPool
	events    observer.Subject
	locations *validation.URLValidator
	quality   *validation.QualityValidator
	cfg       Config
}

// NewBlurDetectionService creates a new blur detection service. analyses,
// pool and events may be nil.
func NewBlurDetectionService(
	images repository.ImageRepository,
	analyses repository.AnalysisRepository,
	decoder *decode.Decoder,
	pool *worker.WorkerPool,
	events observer.Subject,
	cfg Config,
) *BlurDetectionService {
	if decoder == nil {
		decoder = decode.NewDecoder(decode.DefaultMaxPixels)
	}
	if cfg.Options.Kernel == (blur.Kernel{}) {
		cfg.Options = blur.DefaultOptions()
	}
	if len(cfg.AllowedSchemes) == 0 {
		cfg.AllowedSchemes = []string{"http", "https"}
	}
	return &BlurDetectionService{
		images:    images,
		analyses:  analyses,
		decoder:   decoder,
		pool:      pool,
		events:    events,
		locations: validation.NewURLValidatorWithOptions(cfg.AllowedSchemes, nil),
		quality:   validation.NewQualityValidator(),
		cfg:       cfg,
	}
}

// Options returns the default detector options
func (s *BlurDetectionService) Options() blur.Options {
	return s.cfg.Options
}

// ClassifyLocation fetches the image at req.URL and classifies it
func (s *BlurDetectionService) ClassifyLocation(ctx context.Context, req models.ClassifyRequest) (*models.ClassificationResponse, error) {
	start := time.Now()
	s.notify(ctx, observer.ClassificationEvent{EventType: observer.ClassificationStarted, Source: req.URL})

	resp, err := s.classifyLocation(ctx, req, start)
	if err != nil {
		s.fail(ctx, req.URL, start, err)
		return nil, err
	}
	return resp, nil
}

func (s *BlurDetectionService) classifyLocation(ctx context.Context, req models.ClassifyRequest, start time.Time) (*models.ClassificationResponse, error) {
	if err := s.locations.ValidateImageURL(req.URL); err != nil {
		return nil, err
	}
	opts, maxDim, err := s.resolveOptions(req.ClassifyOptions)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withAnalysisTimeout(ctx)
	defer cancel()

	result, raw, err := s.images.FetchImage(ctx, req.URL)
	if err != nil {
		if raw == nil {
			appErr := mapFetchError(err)
			s.notify(ctx, observer.ClassificationEvent{
				EventType:    observer.ImageFetchFailed,
				Source:       req.URL,
				ErrorMessage: err.Error(),
				Reason:       string(appErr.Type),
			})
			return nil, appErr
		}
		return nil, mapDecodeError(err)
	}
	s.notify(ctx, observer.ClassificationEvent{
		EventType:      observer.ImageFetched,
		Source:         req.URL,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       logrus.Fields{"bytes": len(raw), "format": result.Format},
	})

	return s.classify(ctx, req.URL, raw, result, opts, maxDim, start)
}

// ClassifyBytes classifies an already fetched, encoded image
func (s *BlurDetectionService) ClassifyBytes(ctx context.Context, data []byte, opts models.ClassifyOptions) (*models.ClassificationResponse, error) {
	start := time.Now()
	s.notify(ctx, observer.ClassificationEvent{EventType: observer.ClassificationStarted, Source: UploadSource})

	resp, err := s.classifyBytes(ctx, data, opts, start)
	if err != nil {
		s.fail(ctx, UploadSource, start, err)
		return nil, err
	}
	return resp, nil
}

func (s *BlurDetectionService) classifyBytes(ctx context.Context, data []byte, req models.ClassifyOptions, start time.Time) (*models.ClassificationResponse, error) {
	opts, maxDim, err := s.resolveOptions(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withAnalysisTimeout(ctx)
	defer cancel()

	result, err := s.decoder.Decode(data)
	if err != nil {
		return nil, mapDecodeError(err)
	}
	return s.classify(ctx, UploadSource, data, result, opts, maxDim, start)
}

// ClassifyBatch classifies every request on the worker pool. Items keep the
// request order and carry their own error.
func (s *BlurDetectionService) ClassifyBatch(ctx context.Context, reqs []models.ClassifyRequest) []models.BatchItem {
	items := make([]models.BatchItem, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		items[i] = models.BatchItem{Index: i, URL: req.URL}
		job := func() {
			defer wg.Done()
			resp, err := s.ClassifyLocation(ctx, req)
			if err != nil {
				items[i].Error = ToErrorResponse(err)
				return
			}
			items[i].Result = resp
		}

		wg.Add(1)
		if s.pool == nil || !s.pool.Submit(job) {
			job()
		}
	}

	wg.Wait()
	return items
}

// GetAnalysis returns a stored analysis record
func (s *BlurDetectionService) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	if s.analyses == nil {
		return nil, apperrors.NewNotFoundError("analysis history is disabled", nil)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError("invalid analysis id", err)
	}
	record, err := s.analyses.Get(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return record, nil
}

// History returns the newest analyses of the picture with this fingerprint
func (s *BlurDetectionService) History(ctx context.Context, fp string, limit int) (*models.HistoryResponse, error) {
	if _, err := fingerprint.Parse(fp); err != nil {
		return nil, apperrors.NewValidationError("invalid fingerprint", err)
	}
	resp := &models.HistoryResponse{Fingerprint: fp, Records: []*models.AnalysisRecord{}}
	if s.analyses == nil {
		return resp, nil
	}

	records, err := s.analyses.History(ctx, fp, limit)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if records != nil {
		resp.Records = records
	}
	return resp, nil
}

// classify runs the detector on a decoded image and assembles the response
func (s *BlurDetectionService) classify(
	ctx context.Context,
	source string,
	raw []byte,
	result *decode.Result,
	opts blur.Options,
	maxDim int,
	start time.Time,
) (*models.ClassificationResponse, error) {
	bounds := result.Image.Bounds()
	img := decode.Downscale(result.Image, maxDim)

	c, err := s.runDetector(ctx, blur.FromImage(img), opts)
	if err != nil {
		return nil, err
	}

	capture := metadata.Extract(raw, result.Format)
	fp, err := fingerprint.Compute(img)
	if err != nil {
		logger.WithError(err).WithField("source", source).Warn("Failed to fingerprint image")
	}

	resp := &models.ClassificationResponse{
		ID:             uuid.NewString(),
		Source:         source,
		Format:         result.Format,
		Timestamp:      time.Now().UTC(),
		Classification: c,
		Kernel:         opts.Kernel.Name(),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		Fingerprint:    fp,
		Capture:        capture,
		Message:        validation.VerdictMessage(c),
		Issues:         s.quality.Validate(c, bounds.Dx(), bounds.Dy(), capture),
	}

	if s.analyses != nil {
		if err := s.analyses.Save(ctx, resp.Record()); err != nil {
			logger.WithError(err).WithField("id", resp.ID).Warn("Failed to store analysis")
		}
	}

	elapsed := time.Since(start)
	resp.ProcessingTimeSec = elapsed.Seconds()

	logger.WithFields(logrus.Fields{
		"source":             source,
		"score":              c.Score,
		"blurry":             c.IsBlurry,
		"threshold":          c.ThresholdUsed,
		"processing_time_ms": elapsed.Milliseconds(),
	}).Debug("Image classified")

	s.notify(ctx, observer.ClassificationEvent{
		EventType:      observer.ClassificationCompleted,
		Source:         source,
		ProcessingTime: elapsed,
		Success:        true,
		Score:          c.Score,
		Verdict:        string(c.Verdict),
		Metadata:       logrus.Fields{"kernel": resp.Kernel, "width": c.Width, "height": c.Height},
	})
	return resp, nil
}

// runDetector classifies buf, giving up when ctx ends first
func (s *BlurDetectionService) runDetector(ctx context.Context, buf blur.ImageBuffer, opts blur.Options) (blur.Classification, error) {
	type outcome struct {
		c   blur.Classification
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := blur.NewDetector(opts).Classify(buf)
		done <- outcome{c, err}
	}()

	select {
	case <-ctx.Done():
		return blur.Classification{}, apperrors.NewTimeoutError("analysis timed out", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return blur.Classification{}, mapCoreError(out.err)
		}
		return out.c, nil
	}
}

// resolveOptions applies per-request overrides to the configured defaults
func (s *BlurDetectionService) resolveOptions(req models.ClassifyOptions) (blur.Options, int, error) {
	opts := s.cfg.Options
	maxDim := s.cfg.MaxDimension

	if req.Preset != "" {
		preset, err := blur.PresetOptions(req.Preset)
		if err != nil {
			return opts, 0, apperrors.NewValidationError("unknown preset", err)
		}
		opts = preset.WithParallel(opts.Parallel)
	}
	if req.Threshold != nil {
		if !blur.ValidThreshold(*req.Threshold) {
			return opts, 0, apperrors.NewValidationError("threshold must be a finite, non-negative number", nil)
		}
		opts = opts.WithThreshold(*req.Threshold)
	}
	if req.Kernel != "" {
		k, err := blur.KernelByName(req.Kernel)
		if err != nil {
			return opts, 0, apperrors.NewValidationError("unknown kernel", err)
		}
		opts = opts.WithKernel(k)
	}
	if req.MaxDimension != nil {
		if !validMaxDimension(*req.MaxDimension) {
			return opts, 0, apperrors.NewValidationError(
				fmt.Sprintf("max_dimension must be 0 or at least %d", blur.MinDimension), nil)
		}
		maxDim = *req.MaxDimension
	}
	return opts, maxDim, nil
}

// validMaxDimension accepts 0 (no downscale) or a size the kernels can score
func validMaxDimension(n int) bool {
	return n == 0 || n >= blur.MinDimension
}

func (s *BlurDetectionService) withAnalysisTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.AnalysisTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *BlurDetectionService) notify(ctx context.Context, event observer.ClassificationEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}

func (s *BlurDetectionService) fail(ctx context.Context, source string, start time.Time, err error) {
	reason := string(apperrors.ErrorTypeInternal)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		reason = string(appErr.Type)
	}
	s.notify(ctx, observer.ClassificationEvent{
		EventType:      observer.ClassificationFailed,
		Source:         source,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
		Reason:         reason,
	})
}

func mapFetchError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("timed out fetching image", err)
	case errors.Is(err, storage.ErrUnsupportedScheme):
		return apperrors.NewValidationError("unsupported image location", err)
	case errors.Is(err, fs.ErrNotExist):
		return apperrors.NewNotFoundError("image not found", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func mapDecodeError(err error) error {
	if errors.Is(err, decode.ErrTooLarge) {
		return apperrors.NewValidationError("image dimensions exceed limit", err)
	}
	return apperrors.NewUnsupportedMediaError("failed to decode image", err)
}

func mapCoreError(err error) error {
	switch {
	case errors.Is(err, blur.ErrInvalidDimensions):
		return apperrors.NewProcessingError("image must be at least 3x3 pixels", err)
	case errors.Is(err, blur.ErrEmptyBuffer), errors.Is(err, blur.ErrEmptyInput):
		return apperrors.NewProcessingError("image has no pixels to analyse", err)
	default:
		return apperrors.NewInternalError("classification failed", err)
	}
}

func mapRepositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrAnalysisNotFound):
		return apperrors.NewNotFoundError("analysis not found", err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewNetworkError("analysis history unavailable", err)
	default:
		return apperrors.NewInternalError("analysis history failed", err)
	}
}

// ToErrorResponse converts an error into the API error body
func ToErrorResponse(err error) *models.ErrorResponse {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &models.ErrorResponse{Error: string(appErr.Type), Message: appErr.Message}
	}
	return &models.ErrorResponse{Error: string(apperrors.ErrorTypeInternal), Message: err.Error()}
}
