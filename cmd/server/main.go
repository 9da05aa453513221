package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"xclone/internal/backend"
	"xclone/internal/platform/config"
	"xclone/internal/platform/httpserver"
	"xclone/internal/platform/logger"
	"xclone/internal/platform/metrics"
	ratelimit "xclone/internal/ratelimit/middleware"
	"xclone/internal/ratelimit/store/bucket"
	"xclone/internal/signup/ambient"
	"xclone/internal/signup/flow"
	"xclone/internal/signup/handler"
	"xclone/internal/signup/store"
	httptransport "xclone/internal/transport/http"
	"xclone/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xclone: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, cfg.Logging.Format, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	client, err := backend.New(cfg.BackendURL, cfg.UsernameCheckURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithLogger(log),
	)
	if err != nil {
		return err
	}

	flows := store.New(cfg.Signup.FlowTTL, store.WithLogger(log), store.WithMetrics(m))

	amb := ambient.New(ambient.ParseTheme(cfg.DefaultTheme), log)
	if err := amb.Init(ctx); err != nil {
		return err
	}
	defer amb.Teardown(context.Background())

	buckets := bucket.NewInMemoryBucketStore(cfg.Limits.CheckRPS, cfg.Limits.CheckBurst,
		bucket.WithIdleTTL(cfg.Limits.LimiterIdle),
	)
	limiter := ratelimit.New(buckets, log, ratelimit.WithDisabled(cfg.Limits.LimitDisabled))

	sessions := handler.SessionFactoryFunc(func() (handler.Session, error) {
		s, err := client.NewSession()
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	signupHandler := handler.New(flows, sessions, amb, log, m,
		handler.WithTimeout(cfg.RequestTimeout),
		handler.WithSecureCookies(cfg.SecureCookies),
		handler.WithFlowOptions(
			flow.WithFallbackCode(cfg.Signup.FallbackCode),
			flow.WithResendCooldown(cfg.Signup.ResendCooldown),
		),
	)
	proxyHandler := httptransport.NewProxyHandler(client, limiter, log, m,
		httptransport.WithTrustedProxies(metadata.TrustedProxies(cfg.Limits.TrustedProxies)),
	)

	router := httptransport.NewRouter(log, registry, signupHandler, proxyHandler)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting xclone signup service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(flows.StartCleanup(gctx, cfg.Signup.SweepInterval))
	})
	g.Go(func() error {
		return ignoreCanceled(buckets.StartCleanup(gctx, cfg.Limits.LimiterIdle))
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		flows.CloseAll(shutdownCtx)
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

