package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Email        EmailConfig        `mapstructure:"email"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Notification NotificationConfig `mapstructure:"notification"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Seed         SeedConfig         `mapstructure:"seed"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or pgx
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	// BaseURL is a directory or an afs URL such as file:///var/lib/portal or mem://localhost/docs
	BaseURL       string `mapstructure:"base_url"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// EmailConfig holds SMTP configuration; an empty host disables the email channel
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration; empty credentials disable the chat channel
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// NotificationConfig holds outbox worker configuration
type NotificationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
}

// CacheConfig holds approver cache configuration; an empty redis_url keeps the cache in memory
type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// WorkflowConfig holds workflow engine configuration
type WorkflowConfig struct {
	TransitionTimeout time.Duration `mapstructure:"transition_timeout"`
	PaymentDepartment string        `mapstructure:"payment_department"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Output      string `mapstructure:"output"`
}

// SeedConfig points at the reference data file applied on startup
type SeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables. A .env file
// next to the working directory is read first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/staff_portal.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "migrations")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Storage defaults
	v.SetDefault("storage.base_url", "data/documents")
	v.SetDefault("storage.max_upload_size", 10<<20)

	// Email defaults
	v.SetDefault("email.port", 587)
	v.SetDefault("email.timeout", 15*time.Second)

	// Notification defaults
	v.SetDefault("notification.poll_interval", 5*time.Second)
	v.SetDefault("notification.batch_size", 50)
	v.SetDefault("notification.max_attempts", 5)
	v.SetDefault("notification.send_timeout", 30*time.Second)

	// Cache defaults
	v.SetDefault("cache.ttl", 60*time.Second)
	v.SetDefault("cache.key_prefix", "staff-portal")

	// Workflow defaults
	v.SetDefault("workflow.transition_timeout", 5*time.Second)
	v.SetDefault("workflow.payment_department", "Fund transfer")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "staff-portal")
	v.SetDefault("tracing.output", "stdout")

	// Seed defaults
	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.path", "configs/seed.yaml")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("email.host", "SMTP_HOST")
	v.BindEnv("email.username", "SMTP_USERNAME")
	v.BindEnv("email.password", "SMTP_PASSWORD")
	v.BindEnv("email.from", "MAIL_FROM")
	v.BindEnv("lark.app_id", "LARK_APP_ID")
	v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	v.BindEnv("cache.redis_url", "REDIS_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}

	if c.Storage.BaseURL == "" {
		return fmt.Errorf("storage.base_url is required")
	}

	// Validate email
	if c.Email.Host != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.host is set")
	}

	// Validate Lark credentials
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	if c.Notification.MaxAttempts <= 0 {
		return fmt.Errorf("notification.max_attempts must be positive")
	}

	// Approver lookups may be stale for at most a minute
	if c.Cache.TTL <= 0 || c.Cache.TTL > time.Minute {
		return fmt.Errorf("cache.ttl must be between 1s and 60s")
	}

	if c.Seed.Enabled && c.Seed.Path == "" {
		return fmt.Errorf("seed.path is required when seeding is enabled")
	}

	return nil
}

// Address returns the HTTP listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
