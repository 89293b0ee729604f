// Package config has the configuration for the backend and frontmetrics services
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default listening ports for each service.
const (
	DefaultBackendPort      = "3001"
	DefaultFrontMetricsPort = "4000"
)

// WriteTimeout is the HTTP write deadline of both servers. Database work must
// finish before it, otherwise the error response can no longer be written.
const WriteTimeout = 15 * time.Second

// DefaultQueryTimeout bounds each collection read
const DefaultQueryTimeout = 10 * time.Second

// Environment is the deployment environment the process runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps an ENV value (including long forms) to an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Config holds the settings shared by both services
type Config struct {
	Port     string
	Address  string
	Env      Environment
	LogLevel string
}

// BackendConfig holds the backend service configuration
type BackendConfig struct {
	Config

	MongoURI      string
	MongoDatabase string
	QueryTimeout  time.Duration // must stay below WriteTimeout

	VisitorTTL           time.Duration // 0 keeps visitors for the process lifetime
	VisitorMaxEntries    int           // 0 means unbounded
	VisitorSweepInterval time.Duration

	SessionSampling   bool
	SessionMinSeconds float64
	SessionMaxSeconds float64
}

// Load loads and validates the frontmetrics configuration from environment variables
func Load() (*Config, error) {
	cfg, err := loadBase(DefaultFrontMetricsPort)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadBackend loads and validates the backend configuration from environment variables
func LoadBackend() (*BackendConfig, error) {
	base, err := loadBase(DefaultBackendPort)
	if err != nil {
		return nil, err
	}

	cfg := &BackendConfig{
		Config:               *base,
		MongoURI:             getEnvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnvWithDefault("MONGODB_DATABASE", "music"),
		QueryTimeout:         getDurationEnvWithDefault("QUERY_TIMEOUT", DefaultQueryTimeout),
		VisitorTTL:           getDurationEnvWithDefault("VISITOR_TTL", 24*time.Hour),
		VisitorMaxEntries:    getIntEnvWithDefault("VISITOR_MAX_ENTRIES", 100000),
		VisitorSweepInterval: getDurationEnvWithDefault("VISITOR_SWEEP_INTERVAL", 5*time.Minute),
		SessionSampling:      getBoolEnvWithDefault("SESSION_SAMPLING", true),
		SessionMinSeconds:    getFloatEnvWithDefault("SESSION_MIN_SECONDS", 10),
		SessionMaxSeconds:    getFloatEnvWithDefault("SESSION_MAX_SECONDS", 310),
	}

	if err := validateBackendConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadBase(defaultPort string) (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	return &Config{
		Port:     getEnvWithDefault("PORT", defaultPort),
		Address:  getEnvWithDefault("ADDRESS", "0.0.0.0"),
		Env:      env,
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),
	}, nil
}

// validateConfig validates the shared configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return nil
}

// validateBackendConfig validates the backend specific values on top of the shared ones
func validateBackendConfig(cfg *BackendConfig) error {
	if err := validateConfig(&cfg.Config); err != nil {
		return err
	}

	if cfg.MongoURI == "" {
		return fmt.Errorf("invalid MONGODB_URI: cannot be empty")
	}
	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return fmt.Errorf("invalid MONGODB_URI: must start with mongodb:// or mongodb+srv://")
	}

	if cfg.MongoDatabase == "" {
		return fmt.Errorf("invalid MONGODB_DATABASE: cannot be empty")
	}

	if cfg.QueryTimeout <= 0 || cfg.QueryTimeout >= WriteTimeout {
		return fmt.Errorf("invalid QUERY_TIMEOUT: must be between 0 and %s exclusive, got: %s", WriteTimeout, cfg.QueryTimeout)
	}

	if cfg.VisitorTTL < 0 {
		return fmt.Errorf("invalid VISITOR_TTL: must not be negative, got: %s", cfg.VisitorTTL)
	}

	if cfg.VisitorMaxEntries < 0 {
		return fmt.Errorf("invalid VISITOR_MAX_ENTRIES: must not be negative, got: %d", cfg.VisitorMaxEntries)
	}

	if cfg.VisitorSweepInterval < time.Second {
		return fmt.Errorf("invalid VISITOR_SWEEP_INTERVAL: must be at least 1s, got: %s", cfg.VisitorSweepInterval)
	}

	if cfg.SessionMinSeconds < 0 || cfg.SessionMaxSeconds <= cfg.SessionMinSeconds {
		return fmt.Errorf("invalid session range: need 0 <= SESSION_MIN_SECONDS < SESSION_MAX_SECONDS, got: %g..%g",
			cfg.SessionMinSeconds, cfg.SessionMaxSeconds)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go duration strings ("90s", "24h")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"MONGODB_URI",
		"MONGODB_DATABASE",
		"QUERY_TIMEOUT",
		"VISITOR_TTL",
		"VISITOR_MAX_ENTRIES",
		"VISITOR_SWEEP_INTERVAL",
		"SESSION_SAMPLING",
		"SESSION_MIN_SECONDS",
		"SESSION_MAX_SECONDS",
	}
}
