package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Default returns a Config with sensible default values
func Default() *Config {
	dataDir := getDefaultDataDir()
	configDir := getDefaultConfigDir()

	return &Config{
		App: AppConfig{
			Name:        "beyond",
			Version:     "0.1.0",
			Environment: "dev",
			DataDir:     dataDir,
			ConfigDir:   configDir,
		},

		Database: DatabaseConfig{
			SQLite: SQLiteConfig{
				Path:            filepath.Join(dataDir, "device.db"),
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: time.Hour,
				WALMode:         true,
				ForeignKeys:     true,
				BusyTimeout:     5 * time.Second,
			},
			Postgres: PostgresConfig{
				Enabled:         false,
				Host:            "localhost",
				Port:            5432,
				Database:        "beyond",
				User:            "beyond",
				Password:        "",
				SSLMode:         "prefer",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
			},
		},

		Credential: CredentialConfig{
			Bits:            2048,
			Days:            365,
			AlternativeName: "",
			EnableBase64:    false,
			Async:           false,
		},

		Edge: EdgeConfig{
			Host:            "0.0.0.0",
			Port:            7443,
			TLSEnabled:      false,
			TLSCertFile:     "",
			TLSKeyFile:      "",
			StoragePath:     filepath.Join(dataDir, "models"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PipelinePortLo:  17000,
			PipelinePortHi:  17999,
		},

		Device: DeviceConfig{
			EdgeHost:       "127.0.0.1",
			EdgePort:       7443,
			CACertFile:     "",
			ConnectTimeout: 10 * time.Second,
		},

		Session: SessionConfig{
			OutputQueueSize: 64,
			InvokeQueueSize: 16,
			StopDrainWait:   5 * time.Second,
		},

		Security: SecurityConfig{
			RateLimitEnabled: true,
			RateLimitPerConn: 200, // RPCs per second per connection

			ExchangeKeyMaxAttempts:   5,
			ExchangeKeyLockoutPeriod: 30 * time.Second,

			EncryptLocalDB: false, // Enable in production
		},

		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			OutputPath:   "stdout",
			ErrorPath:    "stderr",
			EnableCaller: false,
			EnableStack:  true,
		},

		Cache: CacheConfig{
			Redis: RedisConfig{
				Enabled:      false,
				Host:         "localhost",
				Port:         6379,
				Password:     "",
				DB:           0,
				MaxRetries:   3,
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},

		Ops: OpsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
	}
}

// getDefaultDataDir returns the default data directory based on OS
func getDefaultDataDir() string {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		baseDir = filepath.Join(os.Getenv("HOME"), "Library", "Application Support")
	default: // linux and others
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("HOME"), ".local", "share")
		}
	}

	return filepath.Join(baseDir, "beyond")
}

// getDefaultConfigDir returns the default config directory based on OS
func getDefaultConfigDir() string {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		baseDir = filepath.Join(os.Getenv("HOME"), "Library", "Application Support")
	default: // linux and others
		baseDir = os.Getenv("XDG_CONFIG_HOME")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("HOME"), ".config")
		}
	}

	return filepath.Join(baseDir, "beyond")
}
