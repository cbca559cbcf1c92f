package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/dispatcher"
	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/application/workflow"
	"github.com/esunday5/staff-portal/internal/infrastructure/cache"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/email"
	"github.com/esunday5/staff-portal/internal/infrastructure/external/lark"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/repository"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
	"github.com/esunday5/staff-portal/internal/infrastructure/seed"
	"github.com/esunday5/staff-portal/internal/infrastructure/storage"
	"github.com/esunday5/staff-portal/internal/infrastructure/worker"
	"github.com/esunday5/staff-portal/pkg/database"
	"github.com/esunday5/staff-portal/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw   *database.DB
	Store *sqlstore.DB
}

// CacheBundle holds the approver cache and the redis client behind it, if any.
type CacheBundle struct {
	Cache port.ApproverCache
	Redis *redis.Client
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Cache      port.ApproverCache
	Registry   *service.ChannelRegistry
	Storage    port.DocumentStorage
	Dispatcher dispatcher.Dispatcher
	Pipeline   *workflow.Pipeline
	Config     *Config
	Logger     *zap.Logger
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	Services   *ServiceBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Pipeline   *workflow.Pipeline
	Config     *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideDatabase opens the configured database and runs pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsDir != "" {
		migrator := database.NewMigrator(db, logger)
		if err := migrator.RunMigrations(context.Background(), cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Raw:   db,
		Store: sqlstore.NewDB(db, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the shared store.
func ProvideRepositories(db *sqlstore.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Role:         repository.NewRoleRepository(db, logger),
		Branch:       repository.NewBranchRepository(db, logger),
		Department:   repository.NewDepartmentRepository(db, logger),
		User:         repository.NewUserRepository(db, logger),
		Request:      repository.NewRequestRepository(db, logger),
		Workflow:     repository.NewWorkflowRepository(db, logger),
		History:      repository.NewHistoryRepository(db, logger),
		Audit:        repository.NewAuditRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
		Settings:     repository.NewSettingsRepository(db, logger),
		Outbox:       repository.NewOutboxRepository(db, logger),
	}, nil
}

// ProvideApproverCache returns a redis cache when a URL is configured, otherwise an in-process one.
func ProvideApproverCache(ctx context.Context, cfg *CacheConfig, logger *zap.Logger) (*CacheBundle, error) {
	if cfg.RedisURL == "" {
		logger.Info("Using in-memory approver cache")
		return &CacheBundle{Cache: cache.NewMemoryApproverCache()}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using redis approver cache", zap.String("key_prefix", cfg.KeyPrefix))
	return &CacheBundle{
		Cache: cache.NewRedisApproverCache(client, cfg.KeyPrefix),
		Redis: client,
	}, nil
}

// ProvideChannels registers a sender for every configured external channel.
func ProvideChannels(cfg *Config, logger *zap.Logger) (*service.ChannelRegistry, error) {
	registry := service.NewChannelRegistry()

	if cfg.Email.Host != "" {
		mailer, err := email.NewMailer(cfg.Email, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mailer: %w", err)
		}
		registry.Register(email.NewChannelSender(mailer))
	} else {
		logger.Warn("Email channel disabled: no SMTP host configured")
	}

	if cfg.Lark.AppID != "" {
		client := lark.NewClient(cfg.Lark, logger)
		registry.Register(lark.NewMessenger(client, logger))
	} else {
		logger.Warn("Chat channel disabled: no Lark app configured")
	}

	logger.Info("Notification channels registered", zap.Any("channels", registry.Channels()))
	return registry, nil
}

// ProvideStorage creates the document store.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.DocumentStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	return storage.NewDocumentStorage(cfg.BaseURL, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKeyValueLogger(logger))), nil
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	kv := utils.NewKeyValueLogger(deps.Logger)
	clock := service.SystemClock{}
	repos := deps.Repos

	directory := service.NewDirectoryService(repos.Role, repos.Branch, repos.Department, repos.User,
		repos.Audit, deps.TxManager, deps.Cache, deps.Config.Cache.TTL, clock, kv)
	audit := service.NewAuditService(repos.Audit, repos.History, deps.TxManager, kv)
	notification := service.NewNotificationService(repos.User, repos.Notification, repos.Settings,
		repos.Outbox, repos.Audit, deps.Registry, deps.TxManager, clock, kv)
	requests := service.NewRequestService(repos.Request, repos.Workflow, directory, audit, notification,
		deps.Storage, deps.Pipeline, deps.TxManager, deps.Dispatcher, clock, kv)

	return &ServiceBundle{
		Directory:    directory,
		Audit:        audit,
		Notification: notification,
		Request:      requests,
	}, nil
}

// ProvideWorkflowEngine creates the approval workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Services == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}

	return workflow.NewEngine(
		deps.Repos.Request,
		deps.Repos.Workflow,
		deps.Services.Directory,
		deps.Services.Audit,
		deps.Services.Notification,
		deps.TxManager,
		service.SystemClock{},
		utils.NewKeyValueLogger(deps.Logger),
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithPipeline(deps.Pipeline),
		workflow.WithTransitionTimeout(deps.Config.TransitionTimeout),
		workflow.WithPaymentDepartment(deps.Config.PaymentDepartment),
	), nil
}

// ProvideWorkers creates the outbox worker, wires it to the dispatcher and registers it.
func ProvideWorkers(cfg worker.OutboxWorkerConfig, repos *RepositoryBundle, registry port.ChannelRegistry, disp dispatcher.Dispatcher, logger *zap.Logger) (*worker.WorkerManager, *worker.OutboxWorker, error) {
	if repos == nil {
		return nil, nil, fmt.Errorf("repositories are required")
	}

	outbox := worker.NewOutboxWorker(cfg, repos.Outbox, registry, service.SystemClock{}, logger)
	outbox.Subscribe(disp)

	manager := worker.NewWorkerManager(logger)
	manager.Register(outbox)
	return manager, outbox, nil
}

// ProvideSeed applies the reference data file.
func ProvideSeed(ctx context.Context, cfg *SeedConfig, repos *RepositoryBundle, directory service.DirectoryService, tx port.TransactionManager, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	data, err := seed.Load(cfg.Path)
	if err != nil {
		return err
	}
	seeder := seed.NewSeeder(repos.Role, repos.Branch, repos.Department, repos.User, directory, tx, logger)
	_, err = seeder.Apply(ctx, data)
	return err
}
