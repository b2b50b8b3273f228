// Package app wires the Sooshi subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the active AI adapter,
// the assistant service and the persona engine; Run serves the API and the
// operational endpoints; Shutdown drains both listeners.
//
// For testing, inject a mock adapter via [WithAdapter]. When no adapter is
// provided, New builds the one selected by the configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sooshi/internal/aiprovider"
	"github.com/MrWong99/sooshi/internal/api"
	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/health"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/internal/persona"
	"github.com/MrWong99/sooshi/internal/resilience"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	adapter  aiprovider.Adapter
	metrics  *observe.Metrics
	client   *http.Client
	promHTTP http.Handler
	svc      *assistant.Service
	personas *persona.Engine

	apiServer     *http.Server
	metricsServer *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAdapter injects an adapter instead of building one from config.
func WithAdapter(a aiprovider.Adapter) Option {
	return func(app *App) { app.adapter = a }
}

// WithMetrics overrides the metrics instruments, which otherwise come from
// the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(app *App) { app.metrics = m }
}

// WithMetricsHandler sets the handler served on /metrics. Default:
// [promhttp.Handler] over the global Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(app *App) { app.promHTTP = h }
}

// WithHTTPClient sets the client used by readiness probes.
func WithHTTPClient(c *http.Client) Option {
	return func(app *App) { app.client = c }
}

// New creates an App by wiring all subsystems together. It performs all
// initialisation synchronously and fails fast on an invalid provider
// selection or missing backend settings.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 5 * time.Second}
	}
	if a.promHTTP == nil {
		a.promHTTP = promhttp.Handler()
	}

	if a.adapter == nil {
		if err := a.initAdapter(); err != nil {
			return nil, err
		}
	}

	svc, err := assistant.New(a.adapter,
		assistant.WithGeneration(cfg.Generation),
		assistant.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.svc = svc

	a.personas, err = persona.New(persona.WithChat(svc), persona.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.initServers()

	slog.Info("provider active",
		"provider", a.adapter.Kind(),
		"name", a.adapter.Name(),
	)
	return a, nil
}

func (a *App) initAdapter() error {
	factory, err := aiprovider.NewFactory(a.cfg,
		aiprovider.WithAdapterOptions(aiprovider.WithMetrics(a.metrics)),
		aiprovider.WithMiddleware(resilience.Middleware(a.cfg.Retry, a.metrics)),
	)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.adapter, err = factory.BuildAdapter()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// initServers builds the API server and, when a separate metrics address is
// configured, the operational server. Without one, /metrics, /healthz and
// /readyz are served next to the API.
func (a *App) initServers() {
	checks := health.New(health.BackendCheckers(a.cfg, a.client)...)

	apiMux := http.NewServeMux()
	api.New(a.svc, a.personas,
		api.WithMetrics(a.metrics),
		api.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes),
	).Register(apiMux)

	opsMux := apiMux
	if a.cfg.Server.MetricsAddr != "" {
		opsMux = http.NewServeMux()
		a.metricsServer = &http.Server{
			Addr:              a.cfg.Server.MetricsAddr,
			Handler:           opsMux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	opsMux.Handle("GET /metrics", a.promHTTP)
	checks.Register(opsMux)

	a.apiServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(apiMux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Handler returns the API handler including middleware.
func (a *App) Handler() http.Handler { return a.apiServer.Handler }

// Service returns the assistant service.
func (a *App) Service() *assistant.Service { return a.svc }

// Run serves until ctx is cancelled or a listener fails. On cancellation the
// servers are shut down gracefully and ctx.Err() is returned.
func (a *App) Run(ctx context.Context) error {
	srvs := a.servers()
	lns := make([]net.Listener, 0, len(srvs))
	for _, srv := range srvs {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range lns {
				_ = l.Close()
			}
			return fmt.Errorf("app: listen %s: %w", srv.Addr, err)
		}
		lns = append(lns, ln)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range srvs {
		ln := lns[i]
		slog.Info("listening", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "provider", a.adapter.Kind())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) servers() []*http.Server {
	srvs := []*http.Server{a.apiServer}
	if a.metricsServer != nil {
		srvs = append(srvs, a.metricsServer)
	}
	return srvs
}

// Shutdown drains all listeners. It respects the context deadline and is
// safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		var errs []error
		for _, srv := range a.servers() {
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("server shutdown error", "addr", srv.Addr, "err", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
