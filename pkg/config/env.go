package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

const (
	// DefaultAPIPort defines the default port for the HTTP API and metrics server
	DefaultAPIPort = "8080"

	// DefaultMinCollateral defines the minimum collateral required to register an intent
	DefaultMinCollateral = 1000000

	// DefaultKeeperFeeBPS defines the default keeper fee in basis points
	DefaultKeeperFeeBPS = 250

	// DefaultGenesisFile defines the default genesis topology file
	DefaultGenesisFile = "genesis.yaml"

	// DefaultOracleStaleness defines how long an oracle price stays fresh
	DefaultOracleStaleness = 5 * time.Minute

	// DefaultCircuitBreakerEnabled defines whether the execute circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5 * time.Second

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15 * time.Second
)

// GetEnvAPIPort returns the API server port from environment variables
func GetEnvAPIPort() (string, error) {
	port := os.Getenv("API_PORT")
	if port == "" {
		return DefaultAPIPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid API_PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvOwnerAddress returns the engine owner address from environment variables
func GetEnvOwnerAddress() (codec.Address, error) {
	raw := os.Getenv("OWNER_ADDRESS")
	if raw == "" {
		return codec.Address{}, fmt.Errorf("OWNER_ADDRESS environment variable is required")
	}

	addr, err := codec.AddressFromHex(raw)
	if err != nil {
		return codec.Address{}, fmt.Errorf("invalid OWNER_ADDRESS value: %s, must be a hex address", raw)
	}
	return addr, nil
}

// GetEnvKeeperAddress returns the default keeper address from environment variables
func GetEnvKeeperAddress() (codec.Address, error) {
	raw := os.Getenv("KEEPER_ADDRESS")
	if raw == "" {
		return codec.Address{}, nil
	}

	addr, err := codec.AddressFromHex(raw)
	if err != nil {
		return codec.Address{}, fmt.Errorf("invalid KEEPER_ADDRESS value: %s, must be a hex address", raw)
	}
	return addr, nil
}

// GetEnvMinCollateral returns the minimum registration collateral from environment variables
func GetEnvMinCollateral() (uint64, error) {
	raw := os.Getenv("MIN_COLLATERAL")
	if raw == "" {
		return DefaultMinCollateral, nil
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid MIN_COLLATERAL value: %s, must be an unsigned integer", raw)
	}
	return value, nil
}

// GetEnvKeeperFeeBPS returns the keeper fee rate in basis points from environment variables
func GetEnvKeeperFeeBPS() (uint64, error) {
	raw := os.Getenv("KEEPER_FEE_BPS")
	if raw == "" {
		return DefaultKeeperFeeBPS, nil
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid KEEPER_FEE_BPS value: %s, must be an unsigned integer", raw)
	}
	if value > codec.MaxKeeperFeeBPS {
		return 0, fmt.Errorf("KEEPER_FEE_BPS must not exceed %d", codec.MaxKeeperFeeBPS)
	}
	return value, nil
}

// GetEnvSQLitePath returns the SQLite database path from environment variables.
// An empty value selects the in-memory store.
func GetEnvSQLitePath() string {
	return os.Getenv("SQLITE_PATH")
}

// GetEnvGenesisFile returns the genesis topology file path from environment variables
func GetEnvGenesisFile() string {
	path := os.Getenv("GENESIS_FILE")
	if path == "" {
		return DefaultGenesisFile
	}
	return path
}

// GetEnvMetricsAPIKey returns the optional bearer key protecting the metrics endpoint
func GetEnvMetricsAPIKey() string {
	return os.Getenv("METRICS_API_KEY")
}

// GetEnvOracleStaleness returns the oracle price staleness window from environment variables
func GetEnvOracleStaleness() (time.Duration, error) {
	raw := os.Getenv("ORACLE_STALENESS")
	if raw == "" {
		return DefaultOracleStaleness, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid ORACLE_STALENESS value: %s, must be a valid duration string", raw)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("ORACLE_STALENESS must be greater than 0")
	}
	return parsed, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_WINDOW must be greater than 0")
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_RESET must be greater than 0")
	}
	return parsed, nil
}
