package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Notification.MaxAttempts)
	assert.Equal(t, "Fund transfer", cfg.Workflow.PaymentDepartment)
	assert.Equal(t, 5*time.Second, cfg.Workflow.TransitionTimeout)
	assert.Equal(t, "configs/seed.yaml", cfg.Seed.Path)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("MAIL_FROM", "portal@example.com")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(writeConfig(t, "email:\n  port: 2525\n"))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.Email.Host)
	assert.Equal(t, 2525, cfg.Email.Port)
	assert.Equal(t, "portal@example.com", cfg.Email.From)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Notification.BatchSize)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Database:     DatabaseConfig{Driver: "sqlite3", Path: "x.db"},
			Storage:      StorageConfig{BaseURL: "data/documents"},
			Notification: NotificationConfig{MaxAttempts: 5},
			Cache:        CacheConfig{TTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "pgx without dsn", mutate: func(c *Config) { c.Database.Driver = "pgx" }, wantErr: "database.dsn"},
		{name: "email without from", mutate: func(c *Config) { c.Email.Host = "smtp" }, wantErr: "email.from"},
		{name: "half lark credentials", mutate: func(c *Config) { c.Lark.AppID = "cli" }, wantErr: "lark.app_id"},
		{name: "cache ttl above a minute", mutate: func(c *Config) { c.Cache.TTL = 2 * time.Minute }, wantErr: "cache.ttl"},
		{name: "no attempts", mutate: func(c *Config) { c.Notification.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "seed without path", mutate: func(c *Config) { c.Seed.Enabled = true }, wantErr: "seed.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("MAIL_FROM", "portal@example.com")

	cfg, err := Load(writeConfig(t, "notification:\n  max_attempts: 3\n"))
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, "smtp.example.com", cc.Email.Host)
	assert.Equal(t, 3, cc.Outbox.MaxAttempts)
	assert.Equal(t, cfg.Cache.TTL, cc.Cache.TTL)
	assert.Equal(t, "Fund transfer", cc.Workflow.PaymentDepartment)
	assert.True(t, cc.Seed.Enabled)
}
