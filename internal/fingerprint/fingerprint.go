// Package fingerprint computes perceptual hashes so repeated uploads of the
// same picture share one analysis history.
package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
)

const prefix = "d:"

// DuplicateDistance is the Hamming distance below which two fingerprints are
// treated as the same picture.
const DuplicateDistance = 10

var ErrMalformed = errors.New("malformed fingerprint")

// Compute returns the dHash of img as "d:<16 hex digits>".
func Compute(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("fingerprint: empty image")
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%s%016x", prefix, hash.GetHash()), nil
}

// Parse converts a fingerprint string back into a hash.
func Parse(s string) (*goimagehash.ImageHash, error) {
	hexPart, ok := strings.CutPrefix(s, prefix)
	if !ok || len(hexPart) != 16 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	v, err := strconv.ParseUint(hexPart, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return goimagehash.NewImageHash(v, goimagehash.DHash), nil
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b string) (int, error) {
	ha, err := Parse(a)
	if err != nil {
		return 0, err
	}
	hb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

// Similar reports whether a and b are within DuplicateDistance.
func Similar(a, b string) bool {
	d, err := Distance(a, b)
	return err == nil && d < DuplicateDistance
}
