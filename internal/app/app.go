// Package app wires the canteen API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/canteen-orders/internal/domain/datelock"
	"github.com/xenking/canteen-orders/internal/domain/order"
	"github.com/xenking/canteen-orders/internal/handler"
	"github.com/xenking/canteen-orders/internal/storage/postgres"
	"github.com/xenking/canteen-orders/pkg/health"
	"github.com/xenking/canteen-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, serves HTTP until ctx is done and then drains.
// m is usually the *app.Telemetry handed out by go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("timezone", loc.String()),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.Database.MaxConns)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probes := health.New()
	probes.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	probes.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	orders, err := order.NewService(
		postgres.NewOrderStore(pool),
		postgres.NewMenuRepository(pool),
		postgres.NewUserRepository(pool),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
		order.WithLocation(loc),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	locks := datelock.NewRegistry(postgres.NewLockRepository(pool))

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	router.Get("/livez", probes.LiveEndpoint)
	router.Get("/readyz", probes.ReadyEndpoint)
	router.Mount("/api", handler.NewHandler(orders, locks).Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(cfg.CORS.Origins),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("canteen-api", m),
		),
	}
	probes.SetReady(true)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
