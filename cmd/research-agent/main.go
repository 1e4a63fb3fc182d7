package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/litagent/research-core/internal/config"
	"github.com/litagent/research-core/internal/mcp"
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
	log.Printf("Starting %s (stdio transport)", cfg.MCP.ServerName)

	server, err := mcp.NewServer(configManager)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping research orchestration core...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Research orchestration core stopped with error: %v", err)
	}

	log.Println("Research orchestration core stopped")
}
