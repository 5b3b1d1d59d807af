// Package alpalo is the Directo Al Palo sports news site: a public listing,
// a detail page per item and a collaborator form that publishes new items.
//
// Backends are passed in through Deps so the same App runs against Supabase,
// Postgres, SQLite, S3, local disk or the in-memory fake.
package alpalo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/metrics"
	"github.com/quilpalta/alpalo/news"
	"github.com/quilpalta/alpalo/publish"
	"github.com/quilpalta/alpalo/views"
)

// Deps are the backends the App runs against. Records and Objects are
// required.
type Deps struct {
	Records  news.RecordStore
	Objects  news.ObjectStorage
	Notifier publish.Notifier
	Logger   *zap.Logger

	// Registry collects the App's metrics and is served at /metrics.
	// A private registry is created when nil.
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// App is the central application. It wires together the backends,
// handlers, middleware and views.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Views  *views.Views

	records  news.RecordStore
	workflow *publish.Workflow
	guard    *publish.Guard
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	loginLimiter   *Limiter
	publishLimiter *Limiter
	sessionSecret  []byte
	customRoutes   []func(*App)
	uploadsDir     string
	uploadsServer  http.Handler
}

// New builds the App and registers its middleware and routes. It does not
// listen; call Start for that.
func New(cfg SiteConfig, deps Deps, opts ...Option) (*App, error) {
	if deps.Records == nil || deps.Objects == nil {
		return nil, errors.New("alpalo: record store and object storage are required")
	}
	cfg.setDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(reg)
	}

	v, err := views.New(views.SiteConfig{
		Name:        cfg.Name,
		URL:         cfg.URL,
		Description: cfg.Description,
		Footer:      cfg.Footer,
		Location:    cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("alpalo: %w", err)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("alpalo: session secret: %w", err)
		}
		logger.Warn("no session secret configured, sessions will not survive a restart")
	}

	wfOpts := []publish.Option{
		publish.WithBucket(cfg.Bucket),
		publish.WithImageMaxWidth(cfg.ImageMaxWidth),
		publish.WithMetrics(m),
		publish.WithLogger(logger.Named("publish")),
	}
	if deps.Notifier != nil {
		wfOpts = append(wfOpts, publish.WithNotifier(deps.Notifier))
	}

	a := &App{
		Config:         cfg,
		Echo:           echo.New(),
		Views:          v,
		records:        deps.Records,
		workflow:       publish.New(deps.Objects, deps.Records, wfOpts...),
		guard:          publish.NewGuard(),
		logger:         logger,
		registry:       reg,
		metrics:        m,
		loginLimiter:   NewLimiter(cfg.LoginLimit, time.Minute),
		publishLimiter: NewLimiter(cfg.PublishLimit, time.Minute),
		sessionSecret:  secret,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// Start listens on Config.Addr until the server is shut down.
func (a *App) Start() error {
	a.logger.Info("listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones, publishes
// included, until ctx is done.
func (a *App) Shutdown(ctx context.Context) error {
	a.loginLimiter.Stop()
	a.publishLimiter.Stop()
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.StaticFS("/public", echo.MustSubFS(EmbeddedAssets, "embedded"))
	if a.uploadsDir != "" {
		e.Static("/uploads", a.uploadsDir)
	} else if a.uploadsServer != nil {
		e.GET("/uploads/*", echo.WrapHandler(http.StripPrefix("/uploads", a.uploadsServer)))
	}
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", handleHealth)
	e.GET("/metrics", a.metricsHandler())

	// Public routes
	e.GET("/", a.handleHome)
	e.GET("/noticias/", a.handleListing)
	e.GET("/noticia/:id/", a.handleDetail)

	// Collaborator routes
	e.GET("/colaboradores/", a.handleCollaborators)
	e.POST("/colaboradores/", a.handlePublish)
	e.POST("/colaboradores/ingresar/", a.handleLogin)
	e.POST("/colaboradores/salir/", handleLogout)
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(b)), nil
}
