package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/dispatcher"
	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/application/workflow"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
	"github.com/esunday5/staff-portal/internal/infrastructure/tracing"
	"github.com/esunday5/staff-portal/internal/infrastructure/worker"
	"github.com/esunday5/staff-portal/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	rawDB        *database.DB
	db           *sqlstore.DB
	repositories *RepositoryBundle
	cache        *CacheBundle

	// Infrastructure - External
	registry *service.ChannelRegistry
	storage  port.DocumentStorage

	// Application
	dispatcher dispatcher.Dispatcher
	pipeline   *workflow.Pipeline
	services   *ServiceBundle
	engine     workflow.Engine

	// Workers
	workers *worker.WorkerManager
	outbox  *worker.OutboxWorker

	shutdownTracing func(context.Context) error

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Role         port.RoleRepository
	Branch       port.BranchRepository
	Department   port.DepartmentRepository
	User         port.UserRepository
	Request      port.RequestRepository
	Workflow     port.WorkflowRepository
	History      port.HistoryRepository
	Audit        port.AuditRepository
	Notification port.NotificationRepository
	Settings     port.SettingsRepository
	Outbox       port.OutboxRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Directory    service.DirectoryService
	Audit        service.AuditService
	Notification service.NotificationService
	Request      service.RequestService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Tracing
// 2. Database and repositories
// 3. Approver cache, channel senders and document storage
// 4. Dispatcher and application services
// 5. Workflow engine
// 6. Reference data
// 7. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	shutdown, err := tracing.Init(c.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initInfrastructure(); err != nil {
		return fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	c.logger.Info("Infrastructure initialized")

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkflow(); err != nil {
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.logger.Info("Workflow engine initialized")

	if err := ProvideSeed(c.ctx, &c.config.Seed, c.repositories, c.services.Directory, c.db, c.logger); err != nil {
		return fmt.Errorf("failed to apply seed data: %w", err)
	}

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Stop workers before the dispatcher so no wake-up lands on a stopped loop
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.cache != nil && c.cache.Redis != nil {
		if err := c.cache.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.rawDB != nil {
		if err := c.rawDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)), zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.rawDB == nil {
		set("database", false, "not initialized")
	} else if err := c.rawDB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, string(c.rawDB.Dialect))
	}

	if c.cache != nil && c.cache.Redis != nil {
		if err := c.cache.Redis.Ping(ctx).Err(); err != nil {
			set("cache", false, fmt.Sprintf("redis ping failed: %v", err))
		} else {
			set("cache", true, "redis")
		}
	} else {
		set("cache", c.cache != nil, "memory")
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	}

	if c.outbox != nil {
		stats := c.outbox.Stats()
		set("outbox", stats.LastError == "", stats.LastError)
	}

	if c.registry != nil {
		set("channels", true, fmt.Sprintf("%v", c.registry.Channels()))
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.rawDB = bundle.Raw
	c.db = bundle.Store

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.rawDB.Close()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initInfrastructure() error {
	cacheBundle, err := ProvideApproverCache(c.ctx, &c.config.Cache, c.logger)
	if err != nil {
		return err
	}
	c.cache = cacheBundle

	registry, err := ProvideChannels(c.config, c.logger)
	if err != nil {
		return err
	}
	c.registry = registry

	store, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = store
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	c.pipeline = workflow.DefaultPipeline()

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Cache:      c.cache.Cache,
		Registry:   c.registry,
		Storage:    c.storage,
		Dispatcher: c.dispatcher,
		Pipeline:   c.pipeline,
		Config:     c.config,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkflow() error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		Services:   c.services,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Pipeline:   c.pipeline,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initWorkers() error {
	manager, outbox, err := ProvideWorkers(c.config.Outbox, c.repositories, c.registry, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.workers = manager
	c.outbox = outbox

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	// deliver anything left over from a previous run
	c.outbox.Wake()
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Channels returns the registered channel senders.
func (c *Container) Channels() *service.ChannelRegistry {
	return c.registry
}

// Storage returns the document store.
func (c *Container) Storage() port.DocumentStorage {
	return c.storage
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Outbox returns the outbox worker.
func (c *Container) Outbox() *worker.OutboxWorker {
	return c.outbox
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
