package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "beyond", cfg.App.Name)
	assert.Equal(t, "dev", cfg.App.Environment)
	assert.True(t, cfg.Credential.Bits > 0)
	assert.True(t, cfg.Database.SQLite.WALMode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid default config",
			setup:   func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			setup: func(c *Config) {
				c.App.Environment = "invalid"
			},
			wantErr: true,
			errMsg:  "invalid environment",
		},
		{
			name: "empty app name",
			setup: func(c *Config) {
				c.App.Name = ""
			},
			wantErr: true,
			errMsg:  "app name cannot be empty",
		},
		{
			name: "invalid edge port",
			setup: func(c *Config) {
				c.Edge.Port = 99999
			},
			wantErr: true,
			errMsg:  "invalid edge port",
		},
		{
			name: "invalid pipeline port range",
			setup: func(c *Config) {
				c.Edge.PipelinePortLo = 18000
				c.Edge.PipelinePortHi = 17000
			},
			wantErr: true,
			errMsg:  "invalid pipeline port range",
		},
		{
			name: "invalid credential bits",
			setup: func(c *Config) {
				c.Credential.Bits = 0
			},
			wantErr: true,
			errMsg:  "invalid credential key bits",
		},
		{
			name: "invalid log level",
			setup: func(c *Config) {
				c.Logging.Level = "invalid"
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.setup(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg := Default()
	cfg.App.Environment = "production"
	cfg.Edge.Port = 9090
	cfg.Logging.Level = "debug"

	err := cfg.Save(configPath)
	require.NoError(t, err)

	loaded, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "production", loaded.App.Environment)
	assert.Equal(t, 9090, loaded.Edge.Port)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("BEYOND_ENV", "staging")
	os.Setenv("BEYOND_EDGE_HOST", "192.168.1.100")
	os.Setenv("LOG_LEVEL", "warn")
	defer func() {
		os.Unsetenv("BEYOND_ENV")
		os.Unsetenv("BEYOND_EDGE_HOST")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg := Default()
	cfg.loadFromEnv()

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "192.168.1.100", cfg.Edge.Host)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	original := Default()
	original.Credential.Bits = 4096
	original.Session.OutputQueueSize = 128

	err := original.Save(configPath)
	require.NoError(t, err)

	_, err = os.Stat(configPath)
	require.NoError(t, err)

	loaded, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 4096, loaded.Credential.Bits)
	assert.Equal(t, 128, loaded.Session.OutputQueueSize)
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"invalid", "info"}, // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Default()
			cfg.Logging.Level = tt.level
			level := cfg.GetLogLevel()
			assert.Equal(t, tt.expected, level.String())
		})
	}
}

func TestIsProduction(t *testing.T) {
	cfg := Default()

	cfg.App.Environment = "production"
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())

	cfg.App.Environment = "dev"
	assert.False(t, cfg.IsProduction())
	assert.True(t, cfg.IsDevelopment())
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Postgres.Port = 5432
	cfg.Database.Postgres.User = "testuser"
	cfg.Database.Postgres.Password = "testpass"
	cfg.Database.Postgres.Database = "testdb"
	cfg.Database.Postgres.SSLMode = "disable"

	dsn := cfg.GetDatabaseDSN()
	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestGetRedisDSN(t *testing.T) {
	cfg := Default()
	cfg.Cache.Redis.Host = "localhost"
	cfg.Cache.Redis.Port = 6379

	dsn := cfg.GetRedisDSN()
	assert.Equal(t, "localhost:6379", dsn)
}

func TestGetEdgeAddr(t *testing.T) {
	cfg := Default()
	cfg.Edge.Host = "0.0.0.0"
	cfg.Edge.Port = 7443

	assert.Equal(t, "0.0.0.0:7443", cfg.GetEdgeAddr())
}

func TestGetDeviceDialAddr(t *testing.T) {
	cfg := Default()
	cfg.Device.EdgeHost = "edge.local"
	cfg.Device.EdgePort = 7443

	assert.Equal(t, "edge.local:7443", cfg.GetDeviceDialAddr())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Default()

	// Verify credential defaults
	assert.Equal(t, 2048, cfg.Credential.Bits)
	assert.Equal(t, 365, cfg.Credential.Days)

	// Verify edge defaults
	assert.Equal(t, 7443, cfg.Edge.Port)
	assert.True(t, cfg.Edge.PipelinePortLo < cfg.Edge.PipelinePortHi)

	// Verify security defaults
	assert.True(t, cfg.Security.RateLimitEnabled)
	assert.True(t, cfg.Security.RateLimitPerConn > 0)

	// Verify session defaults
	assert.True(t, cfg.Session.OutputQueueSize > 0)
	assert.True(t, cfg.Session.StopDrainWait > 0)

	// Verify ops defaults
	assert.True(t, cfg.Ops.Enabled)
}

func TestLoadNonExistentFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent.json")

	// Should create default config if file doesn't exist
	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	_, err = os.Stat(configPath)
	require.NoError(t, err)
}

func TestDefaultDataDirExists(t *testing.T) {
	dataDir := getDefaultDataDir()
	assert.NotEmpty(t, dataDir)
	assert.Contains(t, dataDir, "beyond")
}

func TestDefaultConfigDirExists(t *testing.T) {
	configDir := getDefaultConfigDir()
	assert.NotEmpty(t, configDir)
	assert.Contains(t, configDir, "beyond")
}
