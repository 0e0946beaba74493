package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentfails/agentfails-api/chain"
	"github.com/agentfails/agentfails-api/config"
	"github.com/agentfails/agentfails-api/handlers"
	"github.com/agentfails/agentfails-api/middleware"
	"github.com/agentfails/agentfails-api/pkg/monitoring"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting agentfails API server initialization")

	cfg := config.Load()

	shutdownMetrics, err := monitoring.Setup(context.Background(), monitoring.Config{
		ServiceName: "agentfails-api",
	})
	if err != nil {
		slog.Error("Failed to set up metrics", "error", err)
		os.Exit(1)
	}

	dbConfig := NewDatabaseConfig()
	gormDB, err := ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to GORM database", "error", err)
		os.Exit(1)
	}

	chainClient := chain.NewClient(cfg.RPCURL)
	verifier := chain.NewVerifier(chainClient, cfg.TokenAddress, cfg.CollectorAddress)

	handler := handlers.NewHandler(gormDB, verifier, cfg)

	// Setup routes
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)
	mux.Handle("/metrics", monitoring.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"agentfails-api","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
	})

	// Apply CORS and metrics middleware
	root := middleware.NewCORSMiddleware()(monitoring.HTTPMetricsMiddleware(mux))

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	addr := ":" + port
	server := &http.Server{
		Addr:         addr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("agentfails API server starting", "port", port, "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start API server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down agentfails API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := shutdownMetrics(ctx); err != nil {
		slog.Error("Failed to shut down metrics", "error", err)
	}

	slog.Info("agentfails API server exited")
}
