package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/component"
	"github.com/kbukum/bizbackend/firebase"
	"github.com/kbukum/bizbackend/hybrid"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/observability"
	"github.com/kbukum/bizbackend/preference"
	"github.com/kbukum/bizbackend/provisioning"
	"github.com/kbukum/bizbackend/redis"
	"github.com/kbukum/bizbackend/server"
	"github.com/kbukum/bizbackend/supabase"
	"github.com/kbukum/bizbackend/version"
)

// App wires the backend core and the gateway and owns their lifecycle.
//
//	cfg, _ := bootstrap.LoadConfig()
//	app, err := bootstrap.NewApp(cfg)
//	if err != nil { ... }
//	return app.Run(ctx)
//
// Startup runs in three phases: infrastructure components (Redis) start;
// the preference store, Manager, provisioning protocol and gateway are
// wired; the backend and gateway components start.
type App struct {
	Name       string
	Version    string
	Cfg        *Config
	Components *component.Registry
	Logger     *logger.Logger

	// Backends holds the adapter factories. It is filled by NewApp.
	Backends *backend.Registry
	// Manager, Provisioning and Server are built during startup.
	Manager      *backend.Manager
	Provisioning *provisioning.Protocol
	Server       *server.Server

	opts            *appOptions
	gracefulTimeout time.Duration
	redis           *redis.Component
	telemetry       []func(context.Context) error
	unsubscribe     func()

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults, validates cfg, initialises logging and registers
// the adapter factories.
func NewApp(cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Backends:        backend.NewRegistry(),
		opts:            o,
		gracefulTimeout: 15 * time.Second,
	}
	if app.Version == "" {
		app.Version = version.Get().String()
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	if cfg.Redis.Enabled {
		app.redis = redis.NewComponent(cfg.Redis)
		if err := app.Components.Register(app.redis); err != nil {
			return nil, err
		}
	}
	app.registerBackends()
	return app, nil
}

// registerBackends adds a factory for every enabled kind. Kinds whose
// section is empty are left out, except firebase, which always registers
// and fails on initialisation.
func (a *App) registerBackends() {
	for _, kind := range a.Cfg.kinds() {
		if f, ok := a.opts.factories[kind]; ok {
			a.Backends.Register(kind, f)
			continue
		}
		switch kind {
		case backend.KindSupabase:
			if a.Cfg.supabaseConfigured() {
				a.Backends.Register(kind, supabase.Factory(a.Cfg.Supabase))
			}
		case backend.KindFirebase:
			a.Backends.Register(kind, firebase.Factory(a.Cfg.Firebase))
		case backend.KindHybrid:
			if a.Cfg.hybridConfigured() {
				a.Backends.Register(kind, hybrid.Factory(a.Cfg.Hybrid))
			}
		}
	}
	a.Logger.Debug("Backends registered", logger.Fields("kinds", a.Backends.Kinds()))
}

// ReadyCheck reports components that are not healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if !h.OK() {
			unhealthy = append(unhealthy, h.String())
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the gateway and blocks until a signal arrives or ctx is done,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown()
		return err
	}
	a.Logger.Info("Gateway ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.Shutdown()
}

// RunTask starts the core, runs task and shuts down. SIGINT and SIGTERM
// cancel the task's context.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown()
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	taskErr := task(taskCtx)

	if stopErr := a.Shutdown(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// Start performs the startup phases without blocking.
func (a *App) Start(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.initTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	a.Logger.Info("Phase 1: Starting infrastructure")
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	a.Logger.Info("Phase 2: Wiring backend")
	if err := a.wire(); err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}

	a.Logger.Info("Phase 3: Starting backend and gateway")
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}
	a.logSummary(time.Since(start))
	return nil
}

// wire builds everything that depends on started infrastructure.
func (a *App) wire() error {
	prefs := a.opts.prefs
	if prefs == nil {
		var client *redis.Client
		if a.redis != nil {
			client = a.redis.Client()
		}
		var err error
		if prefs, err = preference.New(a.Cfg.Preference, client); err != nil {
			return err
		}
	}

	metrics, err := observability.NewMetrics(observability.Meter(a.Name))
	if err != nil {
		return err
	}

	defaultKind, _ := backend.ParseKind(a.Cfg.Backend.Default)
	a.Manager = backend.NewManager(a.Backends, prefs,
		backend.WithDefaultKind(defaultKind),
		backend.WithLogger(logger.Get("backend")),
	)
	a.unsubscribe = a.Manager.OnProviderChange(func(p backend.Provider) {
		a.Logger.Info("Active backend changed", logger.Fields(logger.FieldProvider, p.Kind(), "name", p.Name()))
	})

	provOpts := []provisioning.Option{
		provisioning.WithMetrics(metrics),
		provisioning.WithLogger(logger.Get("provisioning")),
	}
	if a.opts.sleep != nil {
		provOpts = append(provOpts, provisioning.WithSleep(a.opts.sleep))
	}
	if a.Provisioning, err = provisioning.New(a.Manager, a.Cfg.Provisioning, provOpts...); err != nil {
		return err
	}

	if err := a.Components.Register(&backendComponent{manager: a.Manager, log: a.Logger}); err != nil {
		return err
	}
	if !a.Cfg.Server.Enabled {
		return nil
	}
	a.Server = server.New(a.Cfg.Server, a.Logger)
	a.Server.ApplyMiddleware()
	a.Server.RegisterProbes(a.Name, a.Components.HealthAll)
	server.NewAPI(a.Manager, a.Provisioning, a.Logger).Register(a.Server.Engine())
	return a.Components.Register(server.NewComponent(a.Server))
}

func (a *App) initTelemetry(ctx context.Context) error {
	cfg := a.Cfg.Observability
	if !cfg.Enabled {
		return nil
	}
	res := observability.Resource{
		ServiceName:    a.Name,
		ServiceVersion: a.Version,
		Environment:    a.Cfg.Environment,
	}
	tp, err := observability.InitTracer(ctx, cfg, res)
	if err != nil {
		return err
	}
	a.telemetry = append(a.telemetry, tp.Shutdown)
	mp, err := observability.InitMeter(ctx, cfg, res)
	if err != nil {
		return err
	}
	a.telemetry = append(a.telemetry, mp.Shutdown)
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown stops components in reverse order and flushes telemetry within
// the graceful timeout. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	for i := len(a.telemetry) - 1; i >= 0; i-- {
		if err := a.telemetry[i](ctx); err != nil {
			a.Logger.Warn("Telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	a.telemetry = nil

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
