package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anime-shed/blur-inspector-go/internal/config"
	"github.com/anime-shed/blur-inspector-go/internal/decode"
	"github.com/anime-shed/blur-inspector-go/internal/logger"
	"github.com/anime-shed/blur-inspector-go/internal/observer"
	"github.com/anime-shed/blur-inspector-go/internal/repository"
	"github.com/anime-shed/blur-inspector-go/internal/service"
	"github.com/anime-shed/blur-inspector-go/internal/storage"
	"github.com/anime-shed/blur-inspector-go/internal/transport"
	"github.com/anime-shed/blur-inspector-go/internal/worker"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	router    *storage.Router
	analyses  repository.AnalysisRepository
	pool      *worker.WorkerPool
	publisher *observer.EventPublisher
	registry  *prometheus.Registry
	service   *service.BlurDetectionService
	handler   http.Handler
	closers   []func() error
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	opts, err := cfg.DetectorOptions()
	if err != nil {
		return nil, fmt.Errorf("detector options: %w", err)
	}

	c := &Container{config: cfg}

	router, err := NewSourceRouter(cfg)
	if err != nil {
		return nil, err
	}
	c.router = router

	analyses, err := c.newAnalysisRepository(ctx)
	if err != nil {
		return nil, err
	}
	c.analyses = analyses

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observer.NewMetricsObserver(c.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	c.publisher = observer.NewEventPublisher()
	c.publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.publisher.Subscribe(metrics)

	c.pool = worker.NewWorkerPool(cfg.WorkerCount)
	c.pool.Start()

	decoder := decode.NewDecoder(decode.DefaultMaxPixels)
	c.service = service.NewBlurDetectionService(
		repository.NewSourceImageRepository(router, decoder),
		analyses,
		decoder,
		c.pool,
		c.publisher,
		service.Config{
			Options:         opts,
			MaxDimension:    cfg.MaxAnalysisDimension,
			AnalysisTimeout: cfg.AnalysisTimeout,
			AllowedSchemes:  router.Schemes(),
		},
	)

	c.handler = transport.NewHandler(
		c.service,
		promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
		cfg,
	)

	return c, nil
}

// NewSourceRouter registers the image sources enabled by cfg
func NewSourceRouter(cfg *config.Config) (*storage.Router, error) {
	router := storage.NewRouter().
		Register(storage.NewHTTPImageFetcher(storage.WithTimeout(cfg.ImageFetchTimeout)), "http", "https")

	if cfg.LocalImageRoot != "" {
		router.Register(storage.NewFileFetcher(cfg.LocalImageRoot), "file")
	}

	if cfg.AzureEnabled() {
		azure, err := storage.NewAzureBlobFetcher(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure source: %w", err)
		}
		router.Register(azure, "azblob")
	}
	return router, nil
}

func (c *Container) newAnalysisRepository(ctx context.Context) (repository.AnalysisRepository, error) {
	switch c.config.HistoryBackend {
	case config.HistoryRedis:
		repo, err := repository.NewRedisRepository(ctx, repository.RedisOptions{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
			TTL:      c.config.HistoryTTL,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, repo.Close)
		return repo, nil
	default:
		return repository.NewMemoryRepository(c.config.HistoryTTL), nil
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the blur detection service
func (c *Container) Service() *service.BlurDetectionService {
	return c.service
}

// Close stops the worker pool, waits for pending events and releases connections
func (c *Container) Close() error {
	c.pool.Close()
	c.publisher.Flush()

	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
