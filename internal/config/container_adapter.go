package config

import (
	"github.com/esunday5/staff-portal/internal/container"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/email"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/lark"
	"github.com/esunday5/staff-portal/internal/infrastructure/tracing"
	"github.com/esunday5/staff-portal/internal/infrastructure/worker"
)

// ToContainerConfig converts the file-based configuration loaded by viper
// into the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			Mode:            c.Server.Mode,
		},
		Storage: container.StorageConfig{
			BaseURL:       c.Storage.BaseURL,
			MaxUploadSize: c.Storage.MaxUploadSize,
		},
		Email: email.Config{
			Host:     c.Email.Host,
			Port:     c.Email.Port,
			Username: c.Email.Username,
			Password: c.Email.Password,
			From:     c.Email.From,
			Timeout:  c.Email.Timeout,
		},
		Lark: lark.Config{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Outbox: worker.OutboxWorkerConfig{
			PollInterval: c.Notification.PollInterval,
			BatchSize:    c.Notification.BatchSize,
			MaxAttempts:  c.Notification.MaxAttempts,
			SendTimeout:  c.Notification.SendTimeout,
		},
		Cache: container.CacheConfig{
			TTL:       c.Cache.TTL,
			RedisURL:  c.Cache.RedisURL,
			KeyPrefix: c.Cache.KeyPrefix,
		},
		Workflow: container.WorkflowConfig{
			TransitionTimeout: c.Workflow.TransitionTimeout,
			PaymentDepartment: c.Workflow.PaymentDepartment,
		},
		Tracing: tracing.Config{
			Enabled:     c.Tracing.Enabled,
			ServiceName: c.Tracing.ServiceName,
			Output:      c.Tracing.Output,
		},
		Seed: container.SeedConfig{
			Enabled: c.Seed.Enabled,
			Path:    c.Seed.Path,
		},
	}
}
