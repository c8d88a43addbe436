package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/app"
	"github.com/Dhoini/Plugin-billing-service/internal/config"
	"github.com/Dhoini/Plugin-billing-service/internal/http/routes"
	"github.com/Dhoini/Plugin-billing-service/internal/http/server"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Логгер до загрузки конфигурации: уровень берем из окружения напрямую
	log := logger.New(logger.ParseLevel(os.Getenv("APP_LOG_LEVEL")))
	log.Infow("Plugin billing service starting up...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}
	log = logger.New(logger.ParseLevel(cfg.LogLevel))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 30*time.Second)
	application, err := app.NewApp(startupCtx, cfg, log)
	cancelStartup()
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}
	defer application.Close()

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	srv := server.NewServer(router, cfg, log)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Errorw("HTTP server stopped unexpectedly", "error", err)
		}
	case <-ctx.Done():
		log.Infow("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}
