package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/archive/gcs"
	"github.com/jobradar/seek-crawler/internal/archive/local"
	"github.com/jobradar/seek-crawler/internal/clock/system"
	"github.com/jobradar/seek-crawler/internal/config"
	"github.com/jobradar/seek-crawler/internal/crawl"
	"github.com/jobradar/seek-crawler/internal/extract"
	"github.com/jobradar/seek-crawler/internal/fetcher/headless"
	"github.com/jobradar/seek-crawler/internal/fetcher/static"
	"github.com/jobradar/seek-crawler/internal/hash/sha256"
	"github.com/jobradar/seek-crawler/internal/id/uuid"
	"github.com/jobradar/seek-crawler/internal/metrics"
	notifypubsub "github.com/jobradar/seek-crawler/internal/notify/pubsub"
	"github.com/jobradar/seek-crawler/internal/orchestrator"
	queuemem "github.com/jobradar/seek-crawler/internal/queue/memory"
	"github.com/jobradar/seek-crawler/internal/scraper"
	"github.com/jobradar/seek-crawler/internal/storage/jsonfile"
	storagemem "github.com/jobradar/seek-crawler/internal/storage/memory"
	"github.com/jobradar/seek-crawler/internal/storage/postgres"
	"github.com/jobradar/seek-crawler/internal/webhook"
)

// App holds the wired service graph for the CLI commands.
type App struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Orch     *orchestrator.Orchestrator
	Records  scraper.RecordStore
	Registry *webhook.Registry
	Queue    *queuemem.Queue

	closers []func()
}

// Close releases resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// prefixedBlobStore prepends a fixed prefix to every object path so several
// deployments can share one bucket.
type prefixedBlobStore struct {
	inner  scraper.BlobStore
	prefix string
}

func (s prefixedBlobStore) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	return s.inner.PutObject(ctx, s.prefix+"/"+path, contentType, data)
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	app := &App{Cfg: cfg, Logger: logger}
	clock := system.New()
	ids := uuid.New()
	hasher := sha256.New()

	extractor, err := extract.New(extract.Config{
		BaseURL:               cfg.Scraper.BaseURL,
		Classification:        cfg.Scraper.Classification,
		ExcludedSubcategories: cfg.Scraper.ExcludedSubcategories,
		ExcludedCompanies:     cfg.Scraper.ExcludedCompanies,
	}, logger.Named("extract"))
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	archive, err := buildArchive(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	records, seen, err := buildStores(ctx, cfg, clock, logger, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Records = records

	var headlessFetcher scraper.PageFetcher
	if cfg.Scraper.Fetcher == "headless" {
		hf, err := headless.New(headless.Config{
			MaxParallel: cfg.Headless.MaxParallel,
			UserAgent:   cfg.Scraper.UserAgent,
			NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("build headless fetcher: %w", err)
		}
		app.closers = append(app.closers, hf.Close)
		headlessFetcher = hf
	}
	staticFetcher := static.New(static.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.Scraper.WaitTimeout(),
	})

	crawler := crawl.New(extractor, archive, hasher, clock, crawl.Config{
		WaitTimeout:    cfg.Scraper.WaitTimeout(),
		SettleDelay:    cfg.Scraper.SettleDelay(),
		PagesPerSecond: cfg.Scraper.PagesPerSecond,
	}, logger.Named("crawl"))

	app.Registry = webhook.NewRegistry(ids, clock)
	notifiers := []scraper.Notifier{
		webhook.NewDispatcher(app.Registry, time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second, logger.Named("webhook")),
	}
	if cfg.PubSub.Enabled {
		pub, err := notifypubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, logger.Named("pubsub"))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("build pubsub notifier: %w", err)
		}
		app.closers = append(app.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("pubsub notifier close failed", zap.Error(err))
			}
		})
		notifiers = append(notifiers, pub)
	}

	app.Queue = queuemem.NewQueue(cfg.Jobs.QueueDepth)
	app.closers = append(app.closers, app.Queue.Close)

	app.Orch = orchestrator.New(
		storagemem.NewJobStore(),
		records,
		seen,
		app.Queue,
		crawler,
		headlessFetcher,
		staticFetcher,
		notifiers,
		ids,
		clock,
		orchestrator.Config{
			DefaultSearchURL: cfg.Scraper.SearchURL(),
			DefaultMaxPages:  cfg.Scraper.MaxPages,
		},
		logger.Named("orchestrator"),
	)
	return app, nil
}

func buildArchive(ctx context.Context, cfg config.Config, app *App) (scraper.BlobStore, error) {
	switch cfg.Archive.Provider {
	case "none":
		return nil, nil
	case "local":
		baseDir := cfg.Archive.BaseDir
		if baseDir == "" {
			baseDir = "data/snapshots"
		}
		store, err := local.New(baseDir)
		if err != nil {
			return nil, fmt.Errorf("build local archive: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("build gcs archive: %w", err)
		}
		if prefix := strings.Trim(cfg.Archive.Prefix, "/"); prefix != "" {
			return prefixedBlobStore{inner: store, prefix: prefix}, nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive.provider %q", cfg.Archive.Provider)
	}
}

func buildStores(
	ctx context.Context,
	cfg config.Config,
	clock scraper.Clock,
	logger *zap.Logger,
	app *App,
) (scraper.RecordStore, scraper.SeenStore, error) {
	switch cfg.Storage.Provider {
	case "memory":
		return storagemem.NewRecordStore(), storagemem.NewSeenStore(cfg.Storage.Retention(), clock), nil
	case "json":
		records, err := jsonfile.NewRecordStore(cfg.Storage.RecordsPath, logger.Named("records"))
		if err != nil {
			return nil, nil, fmt.Errorf("build record store: %w", err)
		}
		seen, err := jsonfile.NewSeenStore(cfg.Storage.SeenPath, cfg.Storage.Retention(), clock, logger.Named("seen"))
		if err != nil {
			return nil, nil, fmt.Errorf("build seen store: %w", err)
		}
		return records, seen, nil
	case "postgres":
		records, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres record store: %w", err)
		}
		app.closers = append(app.closers, records.Close)
		if err := records.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure listings schema: %w", err)
		}
		// Seen-state stays file-backed; it is a small rolling window and
		// does not belong in the listings table.
		seen, err := jsonfile.NewSeenStore(cfg.Storage.SeenPath, cfg.Storage.Retention(), clock, logger.Named("seen"))
		if err != nil {
			return nil, nil, fmt.Errorf("build seen store: %w", err)
		}
		return records, seen, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage.provider %q", cfg.Storage.Provider)
	}
}
