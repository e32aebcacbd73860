package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/blur-inspector-go/internal/config"
	apperrors "github.com/anime-shed/blur-inspector-go/internal/errors"
	"github.com/anime-shed/blur-inspector-go/internal/logger"
	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Classifier is the service the handler exposes over HTTP
type Classifier interface {
	ClassifyLocation(ctx context.Context, req models.ClassifyRequest) (*models.ClassificationResponse, error)
	ClassifyBytes(ctx context.Context, data []byte, opts models.ClassifyOptions) (*models.ClassificationResponse, error)
	ClassifyBatch(ctx context.Context, reqs []models.ClassifyRequest) []models.BatchItem
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error)
	History(ctx context.Context, fingerprint string, limit int) (*models.HistoryResponse, error)
}

// NewHandler builds the gin router. metrics may be nil.
func NewHandler(svc Classifier, metrics http.Handler, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.POST("/classify", classifyImage(svc, cfg))
	r.POST("/classify/upload", classifyUpload(svc, cfg))
	r.POST("/classify/batch", classifyBatch(svc, cfg))
	r.GET("/analyses/:id", getAnalysis(svc, cfg))
	r.GET("/analyses", listAnalyses(svc, cfg))

	return r
}

func classifyImage(svc Classifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.ClassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindStatus(err), "invalid request format", err)
			return
		}

		// Threshold in the query string takes precedence over the JSON body
		if err := applyThresholdQuery(c.Query("threshold"), &req.ClassifyOptions); err != nil {
			respondError(c, http.StatusBadRequest, "invalid threshold", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"url":    req.URL,
			"kernel": req.Kernel,
		}).Debug("Classifying image")

		resp, err := svc.ClassifyLocation(ctx, req)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "classification failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"url":                req.URL,
			"score":              resp.Classification.Score,
			"blurry":             resp.Classification.IsBlurry,
			"processing_time_ms": int64(resp.ProcessingTimeSec * 1000),
		}).Info("Image classification completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func classifyUpload(svc Classifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		fileHeader, err := c.FormFile("image")
		if err != nil {
			respondError(c, bindStatus(err), "multipart field 'image' is required", err)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "cannot read upload", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, http.StatusBadRequest, "cannot read upload", err)
			return
		}

		var opts models.ClassifyOptions
		threshold := c.Query("threshold")
		if threshold == "" {
			threshold = c.PostForm("threshold")
		}
		if err := applyThresholdQuery(threshold, &opts); err != nil {
			respondError(c, http.StatusBadRequest, "invalid threshold", err)
			return
		}
		opts.Kernel = c.PostForm("kernel")
		opts.Preset = c.PostForm("preset")

		resp, err := svc.ClassifyBytes(ctx, data, opts)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "classification failed", err)
			return
		}
		resp.Source = fileHeader.Filename

		c.JSON(http.StatusOK, resp)
	}
}

func classifyBatch(svc Classifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindStatus(err), "invalid request format", err)
			return
		}
		if len(req.Items) == 0 || len(req.Items) > models.MaxBatchItems {
			err := apperrors.NewValidationError(
				fmt.Sprintf("batch must contain between 1 and %d items", models.MaxBatchItems), nil)
			respondError(c, err.StatusCode, "invalid batch", err)
			return
		}

		items := svc.ClassifyBatch(ctx, req.Items)
		resp := models.BatchResponse{Items: items, Total: len(items)}
		for _, item := range items {
			switch {
			case item.Error != nil:
				resp.Failed++
			case item.Result != nil && item.Result.Classification.IsBlurry:
				resp.Blurry++
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

func getAnalysis(svc Classifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		record, err := svc.GetAnalysis(ctx, c.Param("id"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func listAnalyses(svc Classifier, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		fp := c.Query("fingerprint")
		if fp == "" {
			respondError(c, http.StatusBadRequest, "invalid query", errors.New("fingerprint is required"))
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(c, http.StatusBadRequest, "invalid query", fmt.Errorf("limit must be a non-negative integer"))
				return
			}
			limit = n
		}

		history, err := svc.History(ctx, fp, limit)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "history lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func applyThresholdQuery(raw string, opts *models.ClassifyOptions) error {
	if raw == "" {
		return nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	opts.Threshold = &t
	return nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
			"ip":          c.ClientIP(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
