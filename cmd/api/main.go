package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/activity/internal/api"
	"example.com/activity/internal/config"
	"example.com/activity/internal/domain"
	"example.com/activity/internal/middleware"
	"example.com/activity/internal/persistence/postgres"
	httptransport "example.com/activity/internal/transport/http"
)

func main() {
	cfg := config.Load()

	store := postgres.NewStore(cfg.PostgresURL, postgres.WithHandleTTL(cfg.ConnCacheTTL))
	defer store.Close()

	service := domain.NewService(store)

	handler := api.NewHandler(service, nil)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	requestLogger := log.New(log.Writer(), "[http] ", log.LstdFlags)
	wrapped := middleware.RequestID(middleware.Logging(requestLogger)(mux))

	server := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.HTTPAddress}, wrapped)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("activity-service api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
