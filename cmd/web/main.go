package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagestudio/internal/form"
	"imagestudio/internal/http/handlers"
	httpapi "imagestudio/internal/http/httpapi"
	"imagestudio/internal/infra"
	"imagestudio/internal/processing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	client, err := processing.NewClient(processing.Options{
		BaseURL:        cfg.BackendURL,
		Logger:         &logger,
		RequestTimeout: cfg.BackendTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure backend client")
	}

	views := form.NewStore(form.Options{
		Processor:      client,
		Logger:         &logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.BackendTimeout,
	}, cfg.ViewTTL)

	app, err := handlers.NewApp(views, &logger, cfg.MaxUploadBytes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build handlers")
	}
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	ctx, stopViews := context.WithCancel(context.Background())
	defer stopViews()
	go views.Run(ctx)

	go func() {
		logger.Info().Str("backend", client.BaseURL()).Msgf("web front end listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
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
	stopViews()
	views.CloseAll()
	logger.Info().Msg("server stopped")
}
