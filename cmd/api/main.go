package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"homestaging/internal/http/handlers"
	httpapi "homestaging/internal/http/httpapi"
	"homestaging/internal/identity"
	"homestaging/internal/infra"
	"homestaging/internal/ledger"
	"homestaging/internal/providers/retouch"
	"homestaging/internal/service"
	"homestaging/internal/storage"
	"homestaging/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	// Ledger store: Postgres when configured, an on-disk SQLite file for
	// single-node deployments otherwise.
	var store ledger.Store
	if cfg.DatabaseURL != "" {
		if err := infra.Migrate(cfg); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		store = ledger.NewPGStore(infra.NewSQLRunner(dbpool, logger))
		logger.Info().Msg("ledger backed by postgres")
	} else {
		sqliteStore, err := ledger.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite ledger")
		}
		defer sqliteStore.Close()
		store = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("ledger backed by sqlite")
	}
	ledgerSvc := ledger.NewService(store, logger)

	spool, err := storage.NewSpool(cfg.SpoolPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open spool")
	}

	retoucher, err := retouch.NewClient(retouch.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Prompt:  cfg.StagingPrompt,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build retouch client")
	}

	tr := tracker.New(retoucher, spool, logger)
	defer tr.Close()

	app := &handlers.App{
		Logger:         logger,
		Tracker:        tr,
		Service:        service.New(tr, ledgerSvc, logger),
		Ledger:         ledgerSvc,
		JWTSecret:      cfg.JWTSecret,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.IdentityAPIKey != "" {
		idClient, err := identity.NewClient(identity.Options{
			APIKey:  cfg.IdentityAPIKey,
			BaseURL: cfg.IdentityBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build identity client")
		}
		app.Identity = idClient
	} else {
		logger.Warn().Msg("IDENTITY_API_KEY not set, auth endpoints disabled")
	}
	if cfg.IdentityIssuer != "" {
		app.Verifier = identity.NewVerifier(cfg.IdentityIssuer, cfg.IdentityAudience, cfg.IdentityJWKSURL)
	}

	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
