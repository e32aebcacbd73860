package validation

import (
	"github.com/anime-shed/blur-inspector-go/internal/blur"
	"github.com/anime-shed/blur-inspector-go/internal/metadata"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// Issue types
const (
	IssueBlurriness     = "blurriness"
	IssueOverSharpening = "over_sharpening"
	IssueLowResolution  = "low_resolution"
	IssueLongExposure   = "long_exposure"
	IssueFlatImage      = "flat_image"
)

// Severities
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Verdict messages shown to the user
const (
	MessageSharp  = "Blur level is low."
	MessageBlurry = "Blur level is too high."
)

// QualityThresholds defines configurable thresholds for quality validation
type QualityThresholds struct {
	// Scores at or above this usually mean sensor noise or artificial sharpening
	MaxLaplacianVariance float64

	// Resolution thresholds
	MinWidth       int
	MinHeight      int
	MinTotalPixels int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MaxLaplacianVariance: 2000.0,
		MinWidth:             320,
		MinHeight:            240,
		MinTotalPixels:       320 * 240,
	}
}

// QualityValidator turns a classification into user-facing issues
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Validate derives issues from a classification and optional capture info.
// width and height are the dimensions of the original image.
func (qv *QualityValidator) Validate(c blur.Classification, width, height int, capture *metadata.CaptureInfo) []models.QualityIssue {
	var issues []models.QualityIssue

	// 1. Blurriness
	switch {
	case c.Score == 0:
		issues = append(issues, models.QualityIssue{
			Type:      IssueFlatImage,
			Message:   "Image has no visible detail. Make sure the lens is not covered.",
			Severity:  SeverityError,
			Threshold: c.ThresholdUsed,
		})
	case c.IsBlurry:
		issues = append(issues, models.QualityIssue{
			Type:        IssueBlurriness,
			Message:     "Image is blurry. Please hold the camera steady and try again.",
			Severity:    SeverityError,
			ActualValue: c.Score,
			Threshold:   c.ThresholdUsed,
		})
	case qv.thresholds.MaxLaplacianVariance > 0 && c.Score >= qv.thresholds.MaxLaplacianVariance:
		issues = append(issues, models.QualityIssue{
			Type:        IssueOverSharpening,
			Message:     "Image has too much noise or artificial sharpening. Use natural lighting and avoid digital zoom.",
			Severity:    SeverityWarning,
			ActualValue: c.Score,
			Threshold:   qv.thresholds.MaxLaplacianVariance,
		})
	}

	// 2. Resolution
	totalPixels := width * height
	if totalPixels < qv.thresholds.MinTotalPixels ||
		width < qv.thresholds.MinWidth ||
		height < qv.thresholds.MinHeight {
		issues = append(issues, models.QualityIssue{
			Type:        IssueLowResolution,
			Message:     "Image is small. The blur score is less reliable for low resolution photos.",
			Severity:    SeverityWarning,
			ActualValue: float64(totalPixels),
			Threshold:   float64(qv.thresholds.MinTotalPixels),
		})
	}

	// 3. Exposure time, only relevant when the image was judged blurry
	if c.IsBlurry && capture.LongExposure() {
		issues = append(issues, models.QualityIssue{
			Type:        IssueLongExposure,
			Message:     "Shutter was open too long. Use more light or a faster shutter speed.",
			Severity:    SeverityInfo,
			ActualValue: capture.ExposureTime,
			Threshold:   metadata.LongExposureSeconds,
		})
	}

	return issues
}

// VerdictMessage returns the short message shown for a classification
func VerdictMessage(c blur.Classification) string {
	if c.IsBlurry {
		return MessageBlurry
	}
	return MessageSharp
}

// ConvertIssuesToMessages converts quality issues to simple error messages for backward compatibility
func (qv *QualityValidator) ConvertIssuesToMessages(issues []models.QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []models.QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
