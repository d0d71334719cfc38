// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/config"
	"github.com/jason-s-yu/pokerbank/internal/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	if cfg.StoreBackend == config.BackendHTTP {
		logger.Fatal("the server cannot use the http backend; choose memory, redis or postgres")
	}
	if err := cfg.InitAuth(); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := cfg.OpenBackend(ctx, logger)
	if err != nil {
		logger.Fatalf("open state store: %v", err)
	}
	defer backend.Close()

	api := handlers.NewAPIServer(backend.Store, logger, cfg.InitialMoney)
	if cfg.Production() {
		api.AllowedOrigins = cfg.AllowedOrigins
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{"addr": srv.Addr, "backend": cfg.StoreBackend}).Info("Running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}
