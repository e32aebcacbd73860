package repository

import "errors"

var (
	// ErrAnalysisNotFound indicates the analysis result was not found
	ErrAnalysisNotFound = errors.New("analysis result not found")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrInvalidRecord indicates a record that cannot be stored
	ErrInvalidRecord = errors.New("invalid analysis record")
)
