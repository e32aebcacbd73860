package models

// MaxBatchItems caps the number of images in one batch request
const MaxBatchItems = 32

// ClassifyOptions are the per-request overrides of the configured detector
type ClassifyOptions struct {
	// Preset selects "default", "strict" or "lenient" before the other overrides apply
	Preset       string   `json:"preset,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
	Kernel       string   `json:"kernel,omitempty"`
	MaxDimension *int     `json:"max_dimension,omitempty"`
}

// ClassifyRequest asks for the classification of a remote or local image
type ClassifyRequest struct {
	URL string `json:"url" binding:"required"`
	ClassifyOptions
}

// BatchRequest carries several classify requests
type BatchRequest struct {
	Items []ClassifyRequest `json:"items" binding:"required"`
}

// BatchItem is the outcome of one entry of a batch; exactly one of Result and Error is set
type BatchItem struct {
	Index  int                     `json:"index"`
	URL    string                  `json:"url"`
	Result *ClassificationResponse `json:"result,omitempty"`
	Error  *ErrorResponse          `json:"error,omitempty"`
}

// BatchResponse wraps batch results with a summary
type BatchResponse struct {
	Items  []BatchItem `json:"items"`
	Total  int         `json:"total"`
	Blurry int         `json:"blurry"`
	Failed int         `json:"failed"`
}

// HistoryResponse lists previous analyses of one picture
type HistoryResponse struct {
	Fingerprint string            `json:"fingerprint"`
	Records     []*AnalysisRecord `json:"records"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
