package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
)

// Config holds the configuration for the intent engine service
type Config struct {
	APIPort         string
	OwnerAddress    codec.Address
	KeeperAddress   codec.Address
	MinCollateral   uint64
	KeeperFeeBPS    uint64
	SQLitePath      string
	GenesisFile     string
	MetricsAPIKey   string
	OracleStaleness time.Duration
	CircuitBreaker  CircuitBreakerConfig
	LoggerConfig    LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	apiPort, err := GetEnvAPIPort()
	if err != nil {
		return nil, err
	}

	ownerAddress, err := GetEnvOwnerAddress()
	if err != nil {
		return nil, err
	}

	keeperAddress, err := GetEnvKeeperAddress()
	if err != nil {
		return nil, err
	}

	minCollateral, err := GetEnvMinCollateral()
	if err != nil {
		return nil, err
	}

	keeperFeeBPS, err := GetEnvKeeperFeeBPS()
	if err != nil {
		return nil, err
	}

	oracleStaleness, err := GetEnvOracleStaleness()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIPort:         apiPort,
		OwnerAddress:    ownerAddress,
		KeeperAddress:   keeperAddress,
		MinCollateral:   minCollateral,
		KeeperFeeBPS:    keeperFeeBPS,
		SQLitePath:      GetEnvSQLitePath(),
		GenesisFile:     GetEnvGenesisFile(),
		MetricsAPIKey:   GetEnvMetricsAPIKey(),
		OracleStaleness: oracleStaleness,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	return cfg, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	raw := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(raw) {
	case "", "debug", "info", "notice", "error":
		return logger.ParseLevel(raw), nil
	}
	return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'notice', 'error'", raw)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	raw := os.Getenv("LOG_COLORING")
	if raw == "" {
		return true, nil
	}
	if raw == "true" {
		return true, nil
	} else if raw == "false" {
		return false, nil
	}
	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", raw)
}
