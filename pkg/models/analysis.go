package models

import (
	"time"

	"github.com/anime-shed/blur-inspector-go/internal/blur"
	"github.com/anime-shed/blur-inspector-go/internal/metadata"
)

// ClassificationResponse is the complete result of classifying one image
type ClassificationResponse struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	Format            string    `json:"format"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	Classification blur.Classification `json:"classification"`
	Kernel         string              `json:"kernel"`

	// Dimensions before any downscaling; Classification holds the analysed ones
	OriginalWidth  int `json:"original_width"`
	OriginalHeight int `json:"original_height"`

	Fingerprint string                `json:"fingerprint,omitempty"`
	Capture     *metadata.CaptureInfo `json:"capture,omitempty"`

	Message string         `json:"message"`
	Issues  []QualityIssue `json:"issues,omitempty"`
}

// Record converts the response into its persisted form
func (r *ClassificationResponse) Record() *AnalysisRecord {
	return &AnalysisRecord{
		ID:          r.ID,
		Fingerprint: r.Fingerprint,
		Source:      r.Source,
		Timestamp:   r.Timestamp,
		Score:       r.Classification.Score,
		Threshold:   r.Classification.ThresholdUsed,
		IsBlurry:    r.Classification.IsBlurry,
		Verdict:     string(r.Classification.Verdict),
		Kernel:      r.Kernel,
		Width:       r.Classification.Width,
		Height:      r.Classification.Height,
	}
}

// AnalysisRecord is what the history store keeps per classification
type AnalysisRecord struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	Score       float64   `json:"score"`
	Threshold   float64   `json:"threshold"`
	IsBlurry    bool      `json:"is_blurry"`
	Verdict     string    `json:"verdict"`
	Kernel      string    `json:"kernel"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
}

// QualityIssue is a user-facing finding derived from a classification
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ImageMetadata describes a fetched image before analysis
type ImageMetadata struct {
	ContentLength int64  `json:"content_length"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
}
