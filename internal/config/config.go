package config

import (
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/blur-inspector-go/internal/blur"
)

// History backends
const (
	HistoryMemory = "memory"
	HistoryRedis  = "redis"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Blur detection
	BlurThreshold        float64
	BlurKernel           string
	MaxAnalysisDimension int
	WorkerCount          int

	// Analysis history
	HistoryBackend string
	HistoryTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Azure blob sources
	AzureAccountName string
	AzureAccountKey  string

	// Local file sources are restricted to this directory when set
	LocalImageRoot string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether azblob:// locations can be fetched
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// DetectorOptions builds blur detector options from the configuration
func (c *Config) DetectorOptions() (blur.Options, error) {
	kernel, err := blur.KernelByName(c.BlurKernel)
	if err != nil {
		return blur.Options{}, err
	}
	return blur.DefaultOptions().WithThreshold(c.BlurThreshold).WithKernel(kernel), nil
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		RequestTimeout:       parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:    parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:      parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize:   parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		BlurThreshold:        parseFloatOrDefault("BLUR_THRESHOLD", blur.DefaultThreshold),
		BlurKernel:           getEnvOrDefault("BLUR_KERNEL", "laplacian4"),
		MaxAnalysisDimension: int(parseIntOrDefault("MAX_ANALYSIS_DIMENSION", 0)),
		WorkerCount:          int(parseIntOrDefault("WORKER_COUNT", 0)),
		HistoryBackend:       strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", HistoryMemory)),
		HistoryTTL:           parseDurationOrDefault("HISTORY_TTL", 24*time.Hour),
		RedisAddr:            getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              int(parseIntOrDefault("REDIS_DB", 0)),
		AzureAccountName:     os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:      os.Getenv("AZURE_STORAGE_KEY"),
		LocalImageRoot:       os.Getenv("LOCAL_IMAGE_ROOT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges; LoadFromEnv calls it
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if !blur.ValidThreshold(c.BlurThreshold) {
		return fmt.Errorf("BLUR_THRESHOLD must be a finite value >= 0 (got %v)", c.BlurThreshold)
	}
	if _, err := blur.KernelByName(c.BlurKernel); err != nil {
		return fmt.Errorf("invalid BLUR_KERNEL: %w", err)
	}
	if c.MaxAnalysisDimension < 0 || (c.MaxAnalysisDimension > 0 && c.MaxAnalysisDimension < blur.MinDimension) {
		return fmt.Errorf("MAX_ANALYSIS_DIMENSION must be 0 or >= %d (got %d)", blur.MinDimension, c.MaxAnalysisDimension)
	}
	if c.WorkerCount < 0 {
		return fmt.Errorf("WORKER_COUNT must be >= 0 (got %d)", c.WorkerCount)
	}
	switch c.HistoryBackend {
	case HistoryMemory:
	case HistoryRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when HISTORY_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid HISTORY_BACKEND: %q", c.HistoryBackend)
	}
	if c.HistoryTTL <= 0 {
		return fmt.Errorf("HISTORY_TTL must be > 0 (got %s)", c.HistoryTTL)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// parseFloatOrDefault keeps unparsable values visible: NaN fails validation
func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return defaultValue
}
