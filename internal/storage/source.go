package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ImageSource returns the raw, still encoded bytes of an image
type ImageSource interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// ErrUnsupportedScheme is returned when no source handles a location
var ErrUnsupportedScheme = errors.New("unsupported image location scheme")

// Router dispatches a location to the source registered for its scheme.
// Locations without a scheme are treated as local file paths.
type Router struct {
	sources map[string]ImageSource
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{sources: make(map[string]ImageSource)}
}

// Register binds src to one or more URL schemes
func (r *Router) Register(src ImageSource, schemes ...string) *Router {
	for _, s := range schemes {
		r.sources[strings.ToLower(s)] = src
	}
	return r
}

// Schemes lists the registered schemes
func (r *Router) Schemes() []string {
	schemes := make([]string, 0, len(r.sources))
	for s := range r.sources {
		schemes = append(schemes, s)
	}
	return schemes
}

// Fetch implements ImageSource
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	scheme := SchemeOf(location)
	src, ok := r.sources[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return src.Fetch(ctx, location)
}

// SchemeOf returns the lower-cased URL scheme of location, or "file" for plain paths
func SchemeOf(location string) string {
	u, err := url.Parse(location)
	// Single-letter schemes are Windows drive letters
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
