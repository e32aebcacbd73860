package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileFetcher reads images from the local filesystem.
// When root is set, locations must resolve inside it.
type FileFetcher struct {
	root     string
	maxBytes int64
}

// NewFileFetcher creates a local file source; root may be empty
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root, maxBytes: DefaultMaxImageBytes}
}

// Fetch implements ImageSource
func (f *FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.resolve(location)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return os.ReadFile(path)
}

func (f *FileFetcher) resolve(location string) (string, error) {
	path := location
	if strings.HasPrefix(strings.ToLower(location), "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid file URL: %w", err)
		}
		path = u.Path
	}
	path = filepath.Clean(path)

	if f.root == "" {
		return path, nil
	}

	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside %s", location, root)
	}
	return path, nil
}
