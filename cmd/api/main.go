package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/workouts/internal/api"
	"example.com/workouts/internal/auth"
	"example.com/workouts/internal/config"
	"example.com/workouts/internal/credentials"
	"example.com/workouts/internal/domain"
	"example.com/workouts/internal/persistence/postgres"
	"example.com/workouts/internal/persistence/sqlite"
	"example.com/workouts/internal/session"
	httptransport "example.com/workouts/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recordStore, userRepo, pruner, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer cleanup()

	go credentials.PruneRefreshTokensPeriodically(ctx, pruner, cfg.RefreshPruneInterval, logger)

	credStore, err := buildCredentialStore(cfg, userRepo)
	if err != nil {
		logger.Fatal("failed to build credential store", zap.Error(err))
	}

	codec, err := session.NewCodec(cfg.CookieSecret)
	if err != nil {
		logger.Fatal("failed to build cookie codec", zap.Error(err))
	}

	sessions := session.NewManager(credStore, logger)
	records := domain.NewService(recordStore, cfg.OperationTimeout)

	handler := api.NewHandler(sessions, records, codec, api.Config{
		CookiePrefix: cfg.CookiePrefix,
		CookieSecure: cfg.CookieSecure,
		CookieMaxAge: cfg.CookieMaxAge,
	}, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(logger, mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("workout tracker listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// openStore selects and initialises the configured record backend. Both
// backends also serve as the user repository and refresh token pruner for the
// local credential store.
func openStore(ctx context.Context, cfg config.Config) (domain.RecordStore, credentials.UserRepository, credentials.RefreshTokenPruner, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		repo := postgres.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, nil, err
		}
		return repo, repo, repo, pool.Close, nil

	default:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, nil, nil, err
		}
		return repo, repo, repo, func() { _ = repo.Close() }, nil
	}
}

func buildCredentialStore(cfg config.Config, userRepo credentials.UserRepository) (credentials.Store, error) {
	switch cfg.CredentialsBackend {
	case config.CredentialsHosted:
		return credentials.NewHosted(cfg.HostedAuthURL, cfg.HostedAuthKey, cfg.OperationTimeout), nil
	default:
		return credentials.NewLocal(userRepo, credentials.LocalConfig{
			Auth: auth.Config{
				Secret:    cfg.JWTSecret,
				Issuer:    cfg.JWTIssuer,
				AccessTTL: cfg.AccessTokenTTL,
			},
			RefreshTTL:          cfg.RefreshTokenTTL,
			MinPasswordLength:   cfg.MinPasswordLength,
			RequireConfirmation: cfg.RequireConfirmation,
		}), nil
	}
}
