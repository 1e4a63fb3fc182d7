package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/litagent/research-core/internal/config"
	"github.com/litagent/research-core/internal/httpapi"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	log.Printf("Starting research orchestration core API on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server, err := httpapi.NewServer(configManager)
	if err != nil {
		log.Fatalf("Failed to create research API server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
