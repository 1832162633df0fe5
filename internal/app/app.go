// Package app wires configuration, storage, the pricing service and the HTTP
// server of the pricing API.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/pricing"
	"github.com/xenking/kart-discounts/internal/handler"
	"github.com/xenking/kart-discounts/pkg/health"
	"github.com/xenking/kart-discounts/pkg/httpmiddleware"
)

const serviceName = "pricing-api"

var probePaths = []string{"/livez", "/readyz"}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	b, err := openBackends(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider(), healthSvc)
	if err != nil {
		return err
	}
	defer b.Close()

	router, err := newRouter(ctx, lg, cfg, b, healthSvc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           router,
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newRouter builds the HTTP routes: health probes plus the /api routes
// behind the rate limiter.
func newRouter(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	b *backends,
	hc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (http.Handler, error) {
	svc := pricing.NewService(b.rules)
	h, err := handler.NewHandler(svc, b.rules, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument(serviceName, tp, mp, probePaths...),
		httpmiddleware.LogRequests(probePaths...),
	)
	router.Get("/livez", hc.LiveEndpoint)
	router.Get("/readyz", hc.ReadyEndpoint)

	limiter := newLimiter(ctx, lg, cfg, b)
	router.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(httpmiddleware.RateLimit(limiter, nil))
		}
		h.Register(r)
	})
	return router, nil
}

// newLimiter returns the configured rate limiter, or nil when limiting is
// disabled.
func newLimiter(ctx context.Context, lg *zap.Logger, cfg *Config, b *backends) httpmiddleware.Limiter {
	if cfg.RateLimit.Max == 0 {
		return nil
	}

	var limiter httpmiddleware.Limiter
	if b.redis != nil {
		limiter = httpmiddleware.NewRedisLimiter(b.redis, "pricing:ratelimit:", cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		wl := httpmiddleware.NewWindowLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		go wl.RunCleanup(ctx)
		limiter = wl
	}
	lg.Info("Rate limiting enabled",
		zap.Int("max", cfg.RateLimit.Max),
		zap.Duration("window", cfg.RateLimit.Window),
		zap.Bool("shared", b.redis != nil),
	)
	return limiter
}
