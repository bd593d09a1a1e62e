package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artifact-stamper/internal/domain"
	"artifact-stamper/internal/repository"
	"artifact-stamper/internal/service"
	"artifact-stamper/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	metricsNamespace = "artifact_pipeline"
	connectTimeout   = 15 * time.Second
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient
	BlobStore      domain.BlobStore
	// LocalFiles is set when objects live on local disk and must be served
	// by this process.
	LocalFiles       *repository.LocalBlobStore
	UploadRepository domain.UploadRepository
	Verifier         *service.CodeVerifier
	Metrics          *prometheus.Registry
	Pipeline         *service.ArtifactPipeline

	closers []func() error
}

// NewContainer creates a new dependency injection container from the
// environment
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	return NewContainerWith(cfg, logger.NewLogger(cfg.GetLogLevel()))
}

// NewContainerWith wires the application for cfg
func NewContainerWith(cfg domain.Config, appLogger domain.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  appLogger,
		Metrics: prometheus.NewRegistry(),
	}

	if err := c.initStorage(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRecorder(); err != nil {
		c.Close()
		return nil, err
	}

	c.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := service.NewPrometheusObserver(metricsNamespace, c.Metrics)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	inspector := service.NewPDFInspector(appLogger)
	compositor := service.NewPDFCompositor(inspector, service.NewImageNormalizer(), appLogger)
	c.Verifier = service.NewCodeVerifier(inspector)

	c.Pipeline = service.NewArtifactPipeline(
		c.BlobStore,
		service.NewQRCodeEncoder(cfg.GetQRSize(), cfg.GetQRRecovery()),
		compositor,
		c.UploadRepository,
		service.NewKeyAllocator(),
		observer,
		appLogger,
		service.PipelineOptions{
			Timeout:          cfg.GetPipelineTimeout(),
			BatchConcurrency: cfg.GetBatchConcurrency(),
			CleanupOnFailure: cfg.GetCleanupOnFailure(),
		},
	)

	appLogger.Info("Container ready",
		"storage_backend", cfg.GetStorageBackend(),
		"record_backend", cfg.GetRecordBackend(),
	)
	return c, nil
}

func (c *Container) initStorage() error {
	var blobs domain.BlobStore

	switch c.Config.GetStorageBackend() {
	case "local":
		local, err := repository.NewLocalBlobStore(c.Config.GetUploadPath(), c.Config.GetPublicBaseURL(), c.Logger)
		if err != nil {
			return err
		}
		c.LocalFiles = local
		blobs = local
	case "supabase":
		client, err := c.supabase()
		if err != nil {
			return err
		}
		blobs = repository.NewSupabaseBlobStore(client, c.Config.GetSupabaseBucket(), c.Logger)
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Config.GetStorageBackend())
	}

	c.BlobStore = repository.NewRetryingBlobStore(blobs, c.Config.GetStorageRetryMaxElapsed(), c.Logger)
	return nil
}

func (c *Container) initRecorder() error {
	switch c.Config.GetRecordBackend() {
	case "sqlite":
		repo, err := repository.NewSQLiteUploadRepository(c.Config.GetSQLitePath(), c.Logger)
		if err != nil {
			return err
		}
		c.UploadRepository = repo
		c.closers = append(c.closers, repo.Close)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		repo, pool, err := repository.OpenPostgresUploadRepository(ctx, c.Config.GetDatabaseURL(), c.Logger)
		if err != nil {
			return err
		}
		c.UploadRepository = repo
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
	case "supabase":
		client, err := c.supabase()
		if err != nil {
			return err
		}
		c.UploadRepository = repository.NewSupabaseUploadRepository(client, c.Logger)
	default:
		return fmt.Errorf("unknown RECORD_BACKEND %q", c.Config.GetRecordBackend())
	}
	return nil
}

// supabase returns the shared Supabase client, initializing it on first use
func (c *Container) supabase() (domain.SupabaseClient, error) {
	if c.SupabaseClient != nil {
		return c.SupabaseClient, nil
	}
	client := repository.NewSupabaseClient(c.Config.GetSupabaseURL(), c.Config.GetSupabaseKey(), c.Logger)
	if err := client.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize supabase: %w", err)
	}
	c.SupabaseClient = client
	return client, nil
}

// Close releases database handles held by the container
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
