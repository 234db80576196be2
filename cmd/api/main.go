package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"floorvis/internal/adapter/repo"
	"floorvis/internal/domain"
	"floorvis/internal/http/handlers"
	httpapi "floorvis/internal/http/httpapi"
	"floorvis/internal/infra"
	"floorvis/internal/infra/geoip"
	"floorvis/internal/middleware"
	"floorvis/internal/providers/gemini"
)

func main() {
	// Load .env when present; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.ProxyAPIKey == "" {
		logger.Warn().Msg("PROXY_API_KEY is empty; the generate endpoint accepts unauthenticated requests")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is empty; generation requests will fail with a configuration error")
	}

	ctx := context.Background()

	// Usage recording is optional. Without a database the proxy still runs,
	// it just drops the per-request events.
	var usage domain.UsageRecorder = repo.NoopUsageRecorder{}
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		usage = repo.NewUsageRepository(infra.NewSQLRunner(dbpool, logger))
	} else {
		logger.Info().Msg("DATABASE_URL is empty; usage events are not recorded")
	}

	// Country resolution is optional as well; header hints still work
	// without the GeoIP database.
	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open geoip database; continuing without ip lookup")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	upstream, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct gemini client")
	}

	app := handlers.NewApp(cfg, logger, upstream, usage)
	router := httpapi.NewRouter(app, cfg, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
