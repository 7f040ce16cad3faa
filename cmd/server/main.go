package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/payout-engine/internal/api"
	"github.com/xtding233/payout-engine/internal/game"
	"github.com/xtding233/payout-engine/internal/logging"
)

// healthService is the gRPC health name reported alongside the overall status.
const healthService = "payout.Engine"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	loader := game.NewLoader(cfg.ConfigDir)
	registry := game.NewRegistry(loader, logger)

	// with nothing named, every game file is calibrated up front
	preload := cfg.Preload
	if len(preload) == 0 {
		games, err := loader.Games()
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		preload = games
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	setServing(healthServer, false)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewServer(registry, logger, api.Limits{
			MaxSpins:   cfg.MaxSpins,
			MaxWorkers: cfg.MaxWorkers,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := registry.Preload(preload); err != nil {
			return err
		}
		setServing(healthServer, true)
		logger.Info("preload complete", zap.Strings("engines", registry.Keys()))
		return nil
	})

	if cfg.WatchInterval > 0 {
		w := game.NewFileWatcher(loader.Paths().GamesDir(), cfg.WatchInterval, func(path string) {
			logger.Info("config changed", zap.String("path", path))
			loader.Invalidate()
			registry.Invalidate()
			if err := registry.Preload(preload); err != nil {
				setServing(healthServer, false)
				logger.Error("reload failed", zap.Error(err))
				return
			}
			setServing(healthServer, true)
		})
		w.Start()
		defer w.Stop()
		if w.Polling() {
			logger.Warn("fsnotify unavailable, polling config tree", zap.Duration("interval", cfg.WatchInterval))
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})
	return g.Wait()
}

func setServing(h *health.Server, ok bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(healthService, status)
}
