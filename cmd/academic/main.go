package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/campusnet/academic-platform/internal/api/http"
	"github.com/campusnet/academic-platform/internal/api/http/handlers"
	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/httpgate"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/domainid"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/identity"
	"github.com/campusnet/academic-platform/internal/observability"
	"github.com/campusnet/academic-platform/internal/persistence"
	"github.com/campusnet/academic-platform/internal/repository"
	"github.com/campusnet/academic-platform/internal/service"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack, err := identity.Build(ctx, cfg.Auth, logger)
	if err != nil {
		logger.Fatal("failed to build identity stack", zap.Error(err))
	}

	pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var userRepo repository.UserRepository
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.Pool())
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	dispatcher := events.NewAsyncDispatcher(1024, logger)
	worker.StartAuditWorker(dispatcher, logger)
	metrics := observability.NewMetrics()

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	policy, err := auth.NewPermissionPolicy(auth.DefaultGrants(auth.ParseRoles(cfg.Auth.ToleratedRoles...)...))
	if err != nil {
		logger.Fatal("failed to build permission policy", zap.Error(err))
	}

	ids := httpgate.DomainIDs{}
	if cfg.DomainID.RemoteURL != "" {
		opts := domainid.Options{
			BaseURL:   cfg.DomainID.RemoteURL,
			Timeout:   cfg.DomainID.Timeout(),
			CacheSize: cfg.DomainID.CacheSize,
			CacheTTL:  cfg.DomainID.CacheTTL(),
			Logger:    logger,
		}
		if redis != nil {
			opts.Shared = redis
		}
		ids.Remote = domainid.New(opts)
	}

	router := httptransport.NewRouter(httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Docs:     handlers.NewDocsHandler(cfg.App.Name, cfg.App.Version),
		Users:    handlers.NewUsersHandler(userService),
		Identity: handlers.NewIdentityHandler(ids, userService),
		Gate: httpgate.Config{
			Gate:   stack.Gate(),
			Logger: logger,
			OnReject: func(r *http.Request, out auth.Outcome) {
				metrics.RecordAuth(out)
				event := events.Rejection(out, r.URL.Path)
				event.RequestID = r.Header.Get(observability.HeaderRequestID)
				_ = dispatcher.Publish(r.Context(), event)
			},
		},
		Policy:  policy,
		CORS:    cfg.CORS,
		Logger:  logger,
		Metrics: metrics,
		Timeout: cfg.App.RequestTimeout(),
	})

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("academic service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	dispatcher.Close()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
