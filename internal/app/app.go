// Package app wires the SuperApp client from configuration: storage backend,
// gateways, session store and the data services that sit on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/ai"
	"github.com/tiqology/superapp-go/audit"
	"github.com/tiqology/superapp-go/auth"
	"github.com/tiqology/superapp-go/dashboard"
	"github.com/tiqology/superapp-go/gateway"
	"github.com/tiqology/superapp-go/ghost"
	"github.com/tiqology/superapp-go/internal/config"
	"github.com/tiqology/superapp-go/metrics"
	"github.com/tiqology/superapp-go/organization"
	"github.com/tiqology/superapp-go/session"
	"github.com/tiqology/superapp-go/storage"
	"github.com/tiqology/superapp-go/storage/redisstore"
	"github.com/tiqology/superapp-go/storage/sqlitestore"
)

// App holds every wired component.
type App struct {
	Client    *tiqology.Client
	Session   *session.Store
	Auth      *auth.Client
	Orgs      *organization.Service
	Dashboard *dashboard.Service
	AI        *ai.Client
	Ghost     *ghost.Client

	Storage  tiqology.SessionStorage
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Audit    *audit.Logger

	logger  *slog.Logger
	closers []io.Closer
}

// Option configures New.
type Option func(*options)

type options struct {
	storage    tiqology.SessionStorage
	httpClient *http.Client
}

// WithStorage replaces the configured storage backend.
func WithStorage(s tiqology.SessionStorage) Option {
	return func(o *options) { o.storage = s }
}

// WithHTTPClient sets the HTTP client used by every gateway.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds the application and restores any persisted session. A restore
// failure is logged and the app starts logged out.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: logger}

	a.Metrics = &metrics.Metrics{}
	if cfg.Metrics {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegisterer(a.Registry)
	}

	if cfg.Audit {
		a.Audit = audit.New(0, audit.WithSlogHandler(logger))
		a.closers = append(a.closers, a.Audit)
	}

	a.Storage = o.storage
	if a.Storage == nil {
		s, closer, err := OpenStorage(ctx, cfg.Storage, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Storage = s
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	common := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(a.Metrics),
	}
	if o.httpClient != nil {
		common = append(common, gateway.WithHTTPClient(o.httpClient))
	}

	// The auth gateway never sends a bearer token, so it does not depend on the store.
	a.Auth = auth.New(gateway.New(cfg.APIBaseURL, slices.Concat(common, []gateway.Option{gateway.WithName("auth")})...))

	a.Session = session.New(a.Auth, a.Storage,
		session.WithLogger(logger),
		session.WithMetrics(a.Metrics),
		session.WithAudit(a.Audit),
	)

	api := gateway.New(cfg.APIBaseURL, slices.Concat(common, []gateway.Option{gateway.WithTokenSource(a.Session)})...)
	a.Orgs = organization.New(api)
	a.Dashboard = dashboard.New(api,
		dashboard.WithLogger(logger),
		dashboard.WithMetrics(a.Metrics),
		dashboard.WithFetchTimeout(cfg.SnapshotTimeout),
	)

	aiGW := gateway.New(cfg.APIBaseURL, slices.Concat(common, []gateway.Option{gateway.WithTokenSource(a.Session)}, ai.GatewayOptions())...)
	a.AI = ai.New(aiGW, ai.WithLogger(logger))

	ghostOpts := []ghost.Option{
		ghost.WithAPIKey(cfg.GhostAPIKey),
		ghost.WithTimeout(cfg.GhostTimeout),
		ghost.WithLogger(logger),
		ghost.WithMetrics(a.Metrics),
	}
	if o.httpClient != nil {
		ghostOpts = append(ghostOpts, ghost.WithHTTPClient(o.httpClient))
	}
	a.Ghost = ghost.New(cfg.GhostURL, ghostOpts...)

	client, err := tiqology.NewClient(tiqology.Config{
		APIBaseURL:   cfg.APIBaseURL,
		GhostURL:     cfg.GhostURL,
		GhostAPIKey:  cfg.GhostAPIKey,
		GhostTimeout: cfg.GhostTimeout,
	},
		tiqology.WithLogger(logger),
		tiqology.WithAuthenticator(a.Auth),
		tiqology.WithSessionManager(a.Session),
		tiqology.WithOrganizationService(a.Orgs),
		tiqology.WithDashboardService(a.Dashboard),
		tiqology.WithAssistant(a.AI),
		tiqology.WithEvaluator(a.Ghost),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Client = client

	if err := a.Session.Restore(ctx); err != nil {
		logger.Warn("session restore failed, starting logged out", "error", err)
	}

	logger.Debug("app ready",
		"api_url", cfg.APIBaseURL,
		"ghost_url", cfg.GhostURL,
		"storage", cfg.Storage.Driver,
		"authenticated", a.Session.IsAuthenticated(),
	)
	return a, nil
}

// OpenStorage opens the backend named by cfg.Driver. The returned closer is nil
// for backends that hold no connection.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (tiqology.SessionStorage, io.Closer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch cfg.Driver {
	case config.StorageMemory:
		return storage.NewMemory(), nil, nil
	case config.StorageFile, "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultStoragePath(config.StorageFile)
		}
		return storage.NewFile(path), nil, nil
	case config.StorageSQLite:
		path := cfg.Path
		if path == "" {
			path = config.DefaultStoragePath(config.StorageSQLite)
		}
		sqlOpts := []sqlitestore.Option{sqlitestore.WithLogger(logger)}
		if cfg.Key != "" {
			sqlOpts = append(sqlOpts, sqlitestore.WithKey(cfg.Key))
		}
		s, err := sqlitestore.Open(ctx, path, sqlOpts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.StorageRedis:
		s, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.Driver)
	}
}

// Close releases storage connections and flushes the audit log.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
