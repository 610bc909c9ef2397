// Package runtime turns a loaded configuration into a running API server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/gestly/gestly/internal/app"
	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/httpapi"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/app/storage/memory"
	"github.com/gestly/gestly/internal/app/storage/postgres"
	supastore "github.com/gestly/gestly/internal/app/storage/supabase"
	"github.com/gestly/gestly/internal/config"
	"github.com/gestly/gestly/internal/platform/migrations"
	"github.com/gestly/gestly/internal/ratelimit"
	"github.com/gestly/gestly/internal/supabase"
	"github.com/gestly/gestly/pkg/logger"
)

// Application wires the domain services to the HTTP server and manages
// their lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	server  *http.Server
	limiter ratelimit.Limiter
	closers []func() error
}

// NewApplication builds the server from cfg. version is reported by /healthz.
func NewApplication(ctx context.Context, cfg *config.Config, version string, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.New(cfg.Logging.Logger())
	}
	a := &Application{cfg: cfg, log: log}

	plans := billing.DefaultPlans()
	if cfg.PlansFile != "" {
		loaded, err := config.LoadPlans(cfg.PlansFile)
		if err != nil {
			return nil, fmt.Errorf("load plans: %w", err)
		}
		plans = loaded
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("configure store: %w", err)
	}

	a.app, err = app.New(store, app.Options{
		Plans:               plans,
		WebhookMasterSecret: cfg.Integrations.WebhookMasterSecret,
		StripeWebhookSecret: cfg.Stripe.WebhookSecret,
		StripeTolerance:     cfg.Stripe.Tolerance,
		IntegrationTimeout:  cfg.Integrations.Timeout,
		GatewaySendRate:     cfg.Integrations.SendRate,
		GatewaySendBurst:    cfg.Integrations.SendBurst,
		ReminderLead:        cfg.Jobs.ReminderLead,
		ReminderSchedule:    cfg.Jobs.ReminderSchedule,
		CampaignSchedule:    cfg.Jobs.CampaignSchedule,
		DisableJobs:         !cfg.Jobs.Enabled,
	}, log.Component("app"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build application: %w", err)
	}

	a.limiter, err = a.buildLimiter(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("configure rate limiter: %w", err)
	}

	handler, err := httpapi.NewHandler(a.app, httpapi.Options{
		JWTSecret:    cfg.Supabase.JWTSecret,
		CORSOrigins:  cfg.Server.AllowedOrigins(),
		Limiter:      a.limiter,
		AuditLogPath: cfg.Server.AuditLogPath,
		Version:      version,
	}, log.Component("http"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return a, nil
}

// Handler exposes the root HTTP handler.
func (a *Application) Handler() http.Handler { return a.server.Handler }

// Run starts background services and the HTTP server, blocking until ctx is
// cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	if mem, ok := a.limiter.(*ratelimit.Memory); ok {
		go sweepLimiter(ctx, mem, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.Server.Addr).
			WithField("store", a.cfg.Database.Store).
			Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops background services and releases
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	a.close()
	return errors.Join(errs...)
}

// sweepLimiter drops closed windows so the in-process limiter does not grow
// with every client ever seen.
func sweepLimiter(ctx context.Context, mem *ratelimit.Memory, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem.Cleanup()
		}
	}
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("error releasing resource")
		}
	}
	a.closers = nil
}

func (a *Application) buildStore(ctx context.Context) (storage.All, error) {
	store, closeStore, err := OpenStore(ctx, a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	return store, nil
}

// OpenStore opens the configured persistence backend. The returned close
// function is nil when the backend holds no connections.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.All, func() error, error) {
	if log == nil {
		log = logger.NewDefault("store")
	}
	switch cfg.Database.Store {
	case config.StorePostgres:
		db, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := migrations.Apply(ctx, db.DB); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
		return postgres.NewX(db), db.Close, nil
	case config.StoreSupabase:
		client, err := supabase.New(supabase.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.ServiceKey})
		if err != nil {
			return nil, nil, err
		}
		return supastore.New(client), nil, nil
	case "", config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Database.Store)
	}
}

func (a *Application) buildLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	rpm := a.cfg.RateLimit.RequestsPerMinute
	if a.cfg.Redis.URL == "" {
		return ratelimit.NewMemory(rpm, time.Minute), nil
	}
	client, err := ratelimit.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info("using redis rate limiter")
	return ratelimit.NewRedis(client, rpm, time.Minute), nil
}

// OpenDatabase connects to Postgres with the configured pool settings and
// verifies the connection.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url not configured")
	}
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
