// Package container provides dependency injection and lifecycle management
// for the staff portal.
package container

import (
	"fmt"
	"time"

	"github.com/esunday5/staff-portal/internal/infrastructure/external/email"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/lark"
	"github.com/esunday5/staff-portal/internal/infrastructure/tracing"
	"github.com/esunday5/staff-portal/internal/infrastructure/worker"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig

	// Email enables the email channel when Host is set
	Email email.Config

	// Lark enables the chat channel when AppID is set
	Lark lark.Config

	Outbox   worker.OutboxWorkerConfig
	Cache    CacheConfig
	Workflow WorkflowConfig
	Tracing  tracing.Config
	Seed     SeedConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or pgx
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir holds one subdirectory of .sql files per dialect
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
}

// StorageConfig holds document storage settings.
type StorageConfig struct {
	BaseURL       string
	MaxUploadSize int64
}

// CacheConfig holds approver cache settings.
type CacheConfig struct {
	TTL       time.Duration
	RedisURL  string
	KeyPrefix string
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	TransitionTimeout time.Duration
	PaymentDepartment string
}

// SeedConfig holds reference data settings.
type SeedConfig struct {
	Enabled bool
	Path    string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			Path:            "data/staff_portal.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrationsDir:   "migrations",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Mode:            "release",
		},
		Storage: StorageConfig{
			BaseURL:       "data/documents",
			MaxUploadSize: 10 << 20,
		},
		Outbox: worker.DefaultOutboxWorkerConfig(),
		Cache: CacheConfig{
			TTL:       60 * time.Second,
			KeyPrefix: "staff-portal",
		},
		Workflow: WorkflowConfig{
			TransitionTimeout: 5 * time.Second,
			PaymentDepartment: "Fund transfer",
		},
		Tracing: tracing.Config{ServiceName: "staff-portal", Output: "stdout"},
		Seed:    SeedConfig{Enabled: true, Path: "configs/seed.yaml"},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Driver == "pgx" {
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	} else if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.BaseURL == "" {
		return fmt.Errorf("storage.base_url is required")
	}

	if c.Seed.Enabled && c.Seed.Path == "" {
		return fmt.Errorf("seed.path is required")
	}

	return nil
}
