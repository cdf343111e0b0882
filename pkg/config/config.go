package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/storage/postgres"
)

// MinSecretLength is the shortest accepted token signing secret in bytes
const MinSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// TrustProxy honors X-Forwarded-For and X-Real-IP for client addresses
	TrustProxy bool `yaml:"trust_proxy"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// SessionConfig holds token and cookie settings
type SessionConfig struct {
	Secret        string        `yaml:"secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieName    string        `yaml:"cookie_name"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	LoginPath     string        `yaml:"login_path"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	SweepSchedule string        `yaml:"sweep_schedule"`

	// Bootstrap admin, created at startup when no account has the email
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Default returns the configuration used before any file or environment overrides
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Session: SessionConfig{
			TokenTTL:   auth.DefaultTokenTTL,
			SessionTTL: 8 * time.Hour,
			CookieName: "auth-token",
			LoginPath:  "/login",
			BcryptCost: auth.DefaultCost,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "warden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// WARDEN_CONFIG_FILE (if any) and WARDEN_* environment variables, in that
// order of precedence from lowest to highest.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("WARDEN_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Server = loadServerConfig(cfg.Server)
	cfg.Storage = loadStorageConfig(cfg.Storage)
	cfg.Session = loadSessionConfig(cfg.Session)
	cfg.Observability = loadObservabilityConfig(cfg.Observability)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig overrides server settings from environment
func loadServerConfig(base ServerConfig) ServerConfig {
	return ServerConfig{
		Host:            getEnv("WARDEN_HOST", base.Host),
		Port:            getEnv("WARDEN_PORT", base.Port),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", base.ReadTimeout),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", base.WriteTimeout),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", base.IdleTimeout),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", base.ShutdownTimeout),
		MaxBodyBytes:    getEnvInt64("WARDEN_MAX_BODY_BYTES", base.MaxBodyBytes),
		TrustProxy:      getEnvBool("WARDEN_TRUST_PROXY", base.TrustProxy),
		HealthPort:      getEnv("WARDEN_HEALTH_PORT", base.HealthPort),
	}
}

// loadStorageConfig overrides storage settings from environment
func loadStorageConfig(cfg storage.Config) storage.Config {
	cfg.PostgresURL = getEnv("WARDEN_DATABASE_URL", cfg.PostgresURL)
	if replicaURLs := getEnv("WARDEN_DATABASE_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = postgres.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("WARDEN_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("WARDEN_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("WARDEN_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	cfg.RedisURL = getEnv("WARDEN_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("WARDEN_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("WARDEN_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("WARDEN_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("WARDEN_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	cfg.SessionBackend = strings.ToLower(getEnv("WARDEN_SESSION_STORE", cfg.SessionBackend))
	return cfg
}

// loadSessionConfig overrides session settings from environment
func loadSessionConfig(base SessionConfig) SessionConfig {
	return SessionConfig{
		Secret:        getEnv("WARDEN_TOKEN_SECRET", base.Secret),
		TokenTTL:      getEnvDuration("WARDEN_TOKEN_TTL", base.TokenTTL),
		SessionTTL:    getEnvDuration("WARDEN_SESSION_TTL", base.SessionTTL),
		CookieName:    getEnv("WARDEN_COOKIE_NAME", base.CookieName),
		CookieSecure:  getEnvBool("WARDEN_COOKIE_SECURE", base.CookieSecure),
		LoginPath:     getEnv("WARDEN_LOGIN_PATH", base.LoginPath),
		BcryptCost:    getEnvInt("WARDEN_BCRYPT_COST", base.BcryptCost),
		SweepSchedule: getEnv("WARDEN_SWEEP_SCHEDULE", base.SweepSchedule),
		AdminEmail:    getEnv("WARDEN_ADMIN_EMAIL", base.AdminEmail),
		AdminPassword: getEnv("WARDEN_ADMIN_PASSWORD", base.AdminPassword),
	}
}

// loadObservabilityConfig overrides observability settings from environment
func loadObservabilityConfig(base ObservabilityConfig) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("WARDEN_LOG_LEVEL", base.LogLevel),
		MetricsEnabled:     getEnvBool("WARDEN_METRICS_ENABLED", base.MetricsEnabled),
		OTelEnabled:        getEnvBool("WARDEN_OTEL_ENABLED", base.OTelEnabled),
		OTelEndpoint:       getEnv("WARDEN_OTEL_ENDPOINT", base.OTelEndpoint),
		OTelServiceName:    getEnv("WARDEN_OTEL_SERVICE_NAME", base.OTelServiceName),
		OTelServiceVersion: getEnv("WARDEN_OTEL_SERVICE_VERSION", base.OTelServiceVersion),
		OTelInsecure:       getEnvBool("WARDEN_OTEL_INSECURE", base.OTelInsecure),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("database URL is required")
	}
	switch c.Storage.SessionBackend {
	case storage.SessionBackendPostgres:
	case storage.SessionBackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis session store")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be postgres or redis)", c.Storage.SessionBackend)
	}

	if len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if c.Session.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Session.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("cookie name is required")
	}
	if !strings.HasPrefix(c.Session.LoginPath, "/") {
		return fmt.Errorf("login path must be an absolute path")
	}
	if c.Session.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Session.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", c.Session.SweepSchedule, err)
		}
	}
	if (c.Session.AdminEmail == "") != (c.Session.AdminPassword == "") {
		return fmt.Errorf("admin email and admin password must be set together")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
