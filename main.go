package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabikreal1/AlgoFlow/pkg/api"
	"github.com/gabikreal1/AlgoFlow/pkg/circuitbreaker"
	"github.com/gabikreal1/AlgoFlow/pkg/config"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Load the sandbox genesis topology
	genesis, err := config.LoadGenesis(cfg.GenesisFile)
	if err != nil {
		log.Fatalf("Failed to load genesis: %v", err)
	}

	// Assemble the engine: ledger and router apps, oracle, protocol pools
	engine, err := api.NewEngine(cfg, genesis, stdLogger)
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}

	breakers := circuitbreaker.NewSet(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
	)
	server := api.NewServer(cfg.APIPort, engine, breakers, cfg.MetricsAPIKey, stdLogger)

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// Start the API server
	log.Println("Starting the intent engine...")
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("API server error: %v", err)
	}
}
