package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/gateway"
	"github.com/campusnet/academic-platform/internal/identity"
	"github.com/campusnet/academic-platform/internal/observability"
	"github.com/campusnet/academic-platform/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	stack, err := identity.Build(context.Background(), cfg.Auth, logger)
	if err != nil {
		logger.Fatal("failed to build identity stack", zap.Error(err))
	}

	dispatcher := events.NewAsyncDispatcher(1024, logger)
	worker.StartAuditWorker(dispatcher, logger)

	table := gateway.NewTable(gateway.DefaultRoutes(cfg.Gateway)...)
	for _, r := range table.Routes() {
		logger.Info("route", zap.String("name", r.Name), zap.String("prefix", r.Prefix),
			zap.String("upstream", r.Upstream), zap.Bool("public", r.Public))
	}

	gw := gateway.New(gateway.Options{
		Name:         cfg.App.Name,
		Version:      cfg.App.Version,
		Table:        table,
		Codec:        stack.Codec,
		Resolver:     stack.Resolver,
		PublicPaths:  stack.Public,
		CORS:         auth.NewCORS(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders),
		ProxyTimeout: cfg.Gateway.ProxyTimeout(),
		Logger:       logger,
		Metrics:      observability.NewMetrics(),
		Dispatcher:   dispatcher,
	})

	go func() {
		if err := gw.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = gw.Shutdown(ctx)
	dispatcher.Close()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
