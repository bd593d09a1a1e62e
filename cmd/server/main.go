package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artifact-stamper/internal/config"
	"artifact-stamper/internal/handler"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	defer container.Close()

	// Handlers
	artifactHandler := handler.NewArtifactHandler(
		container.Pipeline,
		container.UploadRepository,
		container.Logger,
	)

	var fileHandler *handler.FileHandler
	if container.LocalFiles != nil {
		fileHandler = handler.NewFileHandler(container.LocalFiles, container.Logger)
	}

	// Router
	router := handler.NewRouter(
		artifactHandler,
		fileHandler,
		promhttp.HandlerFor(container.Metrics, promhttp.HandlerOpts{}),
		mux.MiddlewareFunc(handler.RequestLogger(container.Logger)),
		mux.MiddlewareFunc(handler.BodyLimit(container.Config.GetMaxFileSize())),
	)

	// start server
	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}

	container.Logger.Info("Server exited")
}
