package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/cache"
	"github.com/quilpalta/alpalo/events"
	"github.com/quilpalta/alpalo/metrics"
	"github.com/quilpalta/alpalo/news"
	"github.com/quilpalta/alpalo/publish"
	"github.com/quilpalta/alpalo/storage/local"
	"github.com/quilpalta/alpalo/storage/memory"
	"github.com/quilpalta/alpalo/storage/postgres"
	"github.com/quilpalta/alpalo/storage/s3"
	"github.com/quilpalta/alpalo/storage/sqlite"
	"github.com/quilpalta/alpalo/storage/supabase"
)

// backends are the stores selected by configuration. Close releases them in
// reverse order of opening.
type backends struct {
	records    news.RecordStore
	objects    news.ObjectStorage
	notifier   publish.Notifier
	uploadsDir string
	// uploads serves the in-memory objects when no directory backs them.
	uploads http.Handler

	postgres *postgres.Store
	s3       *s3.Storage
	local    *local.Storage

	closers []func()
}

func (b *backends) onClose(fn func()) {
	b.closers = append(b.closers, fn)
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func uploadsURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/uploads"
}

// openStores opens the record store and the object storage.
func openStores(ctx context.Context, cfg *Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	var sb *supabase.Client
	if cfg.Records.Driver == "supabase" || cfg.Objects.Driver == "supabase" {
		if cfg.Supabase.URL == "" || cfg.Supabase.AnonKey == "" {
			logger.Warn("supabase url or anon key not set, requests to the backend will fail")
		}
		sb = supabase.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, supabase.WithLogger(logger.Named("supabase")))
	}
	var mem *memory.Backend
	if cfg.Records.Driver == "memory" || cfg.Objects.Driver == "memory" {
		mem = memory.New()
		mem.BaseURL = uploadsURL(cfg.Site.URL)
		logger.Warn("using the in-memory backend, nothing survives a restart")
	}

	switch cfg.Records.Driver {
	case "supabase":
		b.records = sb.Records()
	case "memory":
		b.records = mem
	case "sqlite":
		st, err := sqlite.NewStore(cfg.Records.SQLitePath)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Records.SQLitePath, err)
		}
		b.onClose(func() { _ = st.Close() })
		b.records = st
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Records.PostgresDSN, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.onClose(pool.Close)
		b.postgres = postgres.New(pool, logger.Named("postgres"))
		b.records = b.postgres
	}

	switch cfg.Objects.Driver {
	case "supabase":
		b.objects = sb.Objects()
	case "memory":
		b.objects = mem
		b.uploads = mem
	case "local":
		b.local = local.New(cfg.Objects.LocalDir, uploadsURL(cfg.Site.URL))
		b.uploadsDir = b.local.Root()
		b.objects = b.local
	case "s3":
		st, err := s3.New(s3.Config{
			Endpoint:      cfg.Objects.S3.Endpoint,
			AccessKey:     cfg.Objects.S3.AccessKey,
			SecretKey:     cfg.Objects.S3.SecretKey,
			Region:        cfg.Objects.S3.Region,
			UseSSL:        cfg.Objects.S3.UseSSL,
			PublicBaseURL: cfg.Objects.S3.PublicURL,
		}, logger.Named("s3"))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.s3 = st
		b.objects = st
	}
	return b, nil
}

// openServing adds what only the server needs on top of the stores: the
// listing cache and the publish notifier.
func openServing(ctx context.Context, cfg *Config, b *backends, m *metrics.Metrics, logger *zap.Logger) error {
	switch cfg.Cache.Driver {
	case "memory":
		b.records = cache.Wrap(b.records, cache.NewMemory(cfg.Cache.TTL), m, logger.Named("cache"))
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL, logger)
		if err != nil {
			return err
		}
		b.onClose(func() { _ = client.Close() })
		backend := cache.NewRedis(client, cfg.Cache.RedisKey, cfg.Cache.TTL, logger.Named("cache"))
		b.records = cache.Wrap(b.records, backend, m, logger.Named("cache"))
	}

	if cfg.NATS.URL != "" {
		n, err := events.ConnectNATS(cfg.NATS.URL, cfg.Site.URL, logger.Named("events"))
		if err != nil {
			return err
		}
		b.onClose(n.Close)
		b.notifier = n
	}
	return nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ensureLocalBucket creates <root>/<bucket> for the disk storage.
func ensureLocalBucket(root, bucket string) error {
	return os.MkdirAll(filepath.Join(root, bucket), 0o755)
}
