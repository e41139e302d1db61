package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Config represents the complete application configuration
type Config struct {
	// Application settings
	App AppConfig `json:"app"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Credential Engine settings (not read by internal/credential)
	Credential CredentialConfig `json:"credential"`

	// Edge process settings (RPC listener, storage, TLS)
	Edge EdgeConfig `json:"edge"`

	// Device process settings (which Edge to dial)
	Device DeviceConfig `json:"device"`

	// Peer Session pipeline thresholds
	Session SessionConfig `json:"session"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`

	// Ops HTTP surface (healthz/metrics/events)
	Ops OpsConfig `json:"ops"`
}

// AppConfig contains general application settings
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"` // dev, staging, production
	DataDir     string `json:"data_dir"`     // Directory for Device local state
	ConfigDir   string `json:"config_dir"`   // Directory for config files
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// SQLite configuration (Device-side local store)
	SQLite SQLiteConfig `json:"sqlite"`

	// PostgreSQL configuration (Edge-side audit log)
	Postgres PostgresConfig `json:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings
type SQLiteConfig struct {
	Path            string        `json:"path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	WALMode         bool          `json:"wal_mode"` // Write-Ahead Logging
	ForeignKeys     bool          `json:"foreign_keys"`
	BusyTimeout     time.Duration `json:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL-specific settings
type PostgresConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	Enabled         bool          `json:"enabled"` // audit log is opt-in
}

// CredentialConfig holds Credential Engine settings. The engine does not
// read them: when a Configure JSON blob omits a certificate-request field it
// uses its own built-in fallbacks (for example 4096 bits).
type CredentialConfig struct {
	Bits            int    `json:"bits"`
	Days            int    `json:"days"`
	AlternativeName string `json:"alternative_name"`
	EnableBase64    bool   `json:"enable_base64"`
	Async           bool   `json:"async"`
}

// EdgeConfig contains the Edge process's RPC listener and storage settings
type EdgeConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	TLSEnabled      bool          `json:"tls_enabled"`
	TLSCertFile     string        `json:"tls_cert_file"`
	TLSKeyFile      string        `json:"tls_key_file"`
	StoragePath     string        `json:"storage_path"` // uploaded model blobs
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	PipelinePortLo  int           `json:"pipeline_port_lo"` // Prepare()'s allocation range
	PipelinePortHi  int           `json:"pipeline_port_hi"`
}

// DeviceConfig contains the Device CLI's connection settings
type DeviceConfig struct {
	EdgeHost       string        `json:"edge_host"`
	EdgePort       int           `json:"edge_port"`
	CACertFile     string        `json:"ca_cert_file"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// SessionConfig contains Peer Session / Pipeline Bridge thresholds
type SessionConfig struct {
	OutputQueueSize int           `json:"output_queue_size"` // not read by pipeline.Bridge (fixed outputs buffer of 32)
	InvokeQueueSize int           `json:"invoke_queue_size"` // not read by pipeline.Bridge (fixed cmds buffer of 8)
	StopDrainWait   time.Duration `json:"stop_drain_wait"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	// Rate limiting for the RPC transport
	RateLimitEnabled bool `json:"rate_limit_enabled"`
	RateLimitPerConn int  `json:"rate_limit_per_conn"` // RPCs per second per connection

	// Lockout for repeated failed ExchangeKey attempts from one remote address
	ExchangeKeyMaxAttempts   int           `json:"exchange_key_max_attempts"`
	ExchangeKeyLockoutPeriod time.Duration `json:"exchange_key_lockout_period"`

	// Encryption
	EncryptLocalDB bool `json:"encrypt_local_db"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level        string `json:"level"`         // debug, info, warn, error
	Format       string `json:"format"`        // json, console
	OutputPath   string `json:"output_path"`   // file path or stdout
	ErrorPath    string `json:"error_path"`    // error log file
	EnableCaller bool   `json:"enable_caller"` // Include caller in logs
	EnableStack  bool   `json:"enable_stack"`  // Include stack trace for errors
}

// CacheConfig contains cache settings
type CacheConfig struct {
	// Redis distributed session mirror
	Redis RedisConfig `json:"redis"`
}

// RedisConfig contains Redis cache settings
type RedisConfig struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	MaxRetries   int           `json:"max_retries"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// OpsConfig contains the operator-facing HTTP surface settings
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// Load loads configuration from file and environment variables
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Load from config file if it exists
	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			// If config file doesn't exist, create it with defaults
			if errors.Is(err, os.ErrNotExist) {
				if err := cfg.Save(configPath); err != nil {
					return nil, fmt.Errorf("failed to create default config: %w", err)
				}
			} else {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables
func (c *Config) loadFromEnv() {
	// App
	if v := os.Getenv("BEYOND_ENV"); v != "" {
		c.App.Environment = v
	}
	if v := os.Getenv("BEYOND_DATA_DIR"); v != "" {
		c.App.DataDir = v
	}

	// Database
	if v := os.Getenv("BEYOND_DB_PATH"); v != "" {
		c.Database.SQLite.Path = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Database.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Database.Postgres.Password = v
	}

	// Edge
	if v := os.Getenv("BEYOND_EDGE_HOST"); v != "" {
		c.Edge.Host = v
	}

	// Device
	if v := os.Getenv("BEYOND_DEVICE_EDGE_HOST"); v != "" {
		c.Device.EdgeHost = v
	}

	// Redis
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Save saves configuration to a JSON file
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return errors.New("app name cannot be empty")
	}
	if c.App.Environment != "dev" && c.App.Environment != "staging" && c.App.Environment != "production" {
		return fmt.Errorf("invalid environment: %s (must be dev, staging, or production)", c.App.Environment)
	}

	// Validate database paths
	if c.Database.SQLite.Path == "" {
		return errors.New("SQLite database path cannot be empty")
	}

	// Validate edge config
	if c.Edge.Port < 1 || c.Edge.Port > 65535 {
		return fmt.Errorf("invalid edge port: %d", c.Edge.Port)
	}
	if c.Edge.PipelinePortLo > 0 && c.Edge.PipelinePortHi > 0 && c.Edge.PipelinePortLo >= c.Edge.PipelinePortHi {
		return fmt.Errorf("invalid pipeline port range: [%d, %d]", c.Edge.PipelinePortLo, c.Edge.PipelinePortHi)
	}

	// Validate credential defaults
	if c.Credential.Bits <= 0 {
		return fmt.Errorf("invalid credential key bits: %d", c.Credential.Bits)
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// GetLogLevel returns the zerolog level based on configuration
func (c *Config) GetLogLevel() zerolog.Level {
	switch c.Logging.Level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "dev"
}

// GetDatabaseDSN returns the PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Postgres.Host,
		c.Database.Postgres.Port,
		c.Database.Postgres.User,
		c.Database.Postgres.Password,
		c.Database.Postgres.Database,
		c.Database.Postgres.SSLMode,
	)
}

// GetRedisDSN returns the Redis connection string
func (c *Config) GetRedisDSN() string {
	return fmt.Sprintf("%s:%d", c.Cache.Redis.Host, c.Cache.Redis.Port)
}

// GetEdgeAddr returns the Edge RPC listener's host:port
func (c *Config) GetEdgeAddr() string {
	return fmt.Sprintf("%s:%d", c.Edge.Host, c.Edge.Port)
}

// GetDeviceDialAddr returns the host:port the Device dials to reach its Edge
func (c *Config) GetDeviceDialAddr() string {
	return fmt.Sprintf("%s:%d", c.Device.EdgeHost, c.Device.EdgePort)
}
