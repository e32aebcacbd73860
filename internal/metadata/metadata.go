// Package metadata reads the EXIF capture settings that explain motion or
// focus blur: exposure time, aperture, ISO and the camera that took the shot.
package metadata

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/bep/imagemeta"
)

// LongExposureSeconds is the exposure time at or above which hand-held shots
// commonly show motion blur (1/30 s)
const LongExposureSeconds = 1.0 / 30.0

// CaptureInfo holds EXIF capture settings. Zero values mean "not present".
type CaptureInfo struct {
	Make         string  `json:"make,omitempty"`
	Model        string  `json:"model,omitempty"`
	ExposureTime float64 `json:"exposure_time_sec,omitempty"`
	FNumber      float64 `json:"f_number,omitempty"`
	ISO          int     `json:"iso,omitempty"`
	Orientation  int     `json:"orientation,omitempty"`
	FocalLength  float64 `json:"focal_length_mm,omitempty"`
}

// LongExposure reports whether the exposure time suggests motion blur risk
func (c *CaptureInfo) LongExposure() bool {
	return c != nil && c.ExposureTime >= LongExposureSeconds
}

var wantedTags = map[string]bool{
	"Make":            true,
	"Model":           true,
	"ExposureTime":    true,
	"FNumber":         true,
	"ISOSpeedRatings": true,
	"ISO":             true,
	"Orientation":     true,
	"FocalLength":     true,
}

// formats lists the decoder formats that can carry EXIF
var formats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"tiff": true,
	"webp": true,
}

// Extract parses EXIF data from raw image bytes. format is the decoder's
// format name. Returns nil when there is no usable metadata; it never fails.
func Extract(data []byte, format string) *CaptureInfo {
	if len(data) == 0 || !formats[strings.ToLower(format)] {
		return nil
	}

	info := &CaptureInfo{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return wantedTags[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if apply(info, ti.Tag, ti.Value) {
				found = true
			}
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}
	return info
}

// apply stores one tag value, reporting whether it was usable
func apply(info *CaptureInfo, tag string, value any) bool {
	switch tag {
	case "Make":
		info.Make = strings.TrimSpace(toString(value))
		return info.Make != ""
	case "Model":
		info.Model = strings.TrimSpace(toString(value))
		return info.Model != ""
	case "ExposureTime":
		info.ExposureTime, _ = toFloat(value)
		return info.ExposureTime > 0
	case "FNumber":
		info.FNumber, _ = toFloat(value)
		return info.FNumber > 0
	case "FocalLength":
		info.FocalLength, _ = toFloat(value)
		return info.FocalLength > 0
	case "ISOSpeedRatings", "ISO":
		iso, _ := toFloat(value)
		info.ISO = int(iso)
		return info.ISO > 0
	case "Orientation":
		o, _ := toFloat(value)
		info.Orientation = int(o)
		return info.Orientation > 0
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			return toString(val[0])
		}
	case fmt.Stringer:
		return val.String()
	}
	return ""
}

// toFloat handles plain numbers, rationals and "1/60" strings
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case interface{ Float64() float64 }:
		return val.Float64(), true
	case []any:
		if len(val) > 0 {
			return toFloat(val[0])
		}
	case []uint16:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case string:
		return parseRational(val)
	}
	return 0, false
}

func parseRational(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
