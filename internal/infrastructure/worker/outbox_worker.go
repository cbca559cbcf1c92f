package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/dispatcher"
	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/event"
)

// OutboxWorkerConfig holds configuration for the outbox worker
type OutboxWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SendTimeout  time.Duration
}

// DefaultOutboxWorkerConfig returns default configuration
func DefaultOutboxWorkerConfig() OutboxWorkerConfig {
	return OutboxWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
		SendTimeout:  30 * time.Second,
	}
}

// OutboxStats is a snapshot of the worker's counters
type OutboxStats struct {
	Running     bool      `json:"running"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	LastRun     time.Time `json:"last_run"`
	LastError   string    `json:"last_error,omitempty"`
	PollSeconds float64   `json:"poll_seconds"`
}

// OutboxWorker is the single consumer of the notification outbox.
// It runs on a ticker and whenever Wake is called.
type OutboxWorker struct {
	config   OutboxWorkerConfig
	outbox   port.OutboxRepository
	registry port.ChannelRegistry
	clock    port.Clock
	logger   *zap.Logger

	wake chan struct{}
	// run serializes batches between the loop and ProcessOnce callers
	run sync.Mutex

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sent      int
	failed    int
	lastRun   time.Time
	lastError error
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(
	config OutboxWorkerConfig,
	outbox port.OutboxRepository,
	registry port.ChannelRegistry,
	clock port.Clock,
	logger *zap.Logger,
) *OutboxWorker {
	defaults := DefaultOutboxWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}

	return &OutboxWorker{
		config:   config,
		outbox:   outbox,
		registry: registry,
		clock:    clock,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Name returns the worker name for identification
func (w *OutboxWorker) Name() string {
	return "OutboxWorker"
}

// Subscribe wakes the worker after every committed request change
func (w *OutboxWorker) Subscribe(d dispatcher.Dispatcher) {
	for _, t := range []event.Type{event.TypeRequestCreated, event.TypeStatusChanged, event.TypeRequestResubmitted} {
		d.SubscribeNamed(t, "outbox-wake", func(ctx context.Context, evt *event.Event) error {
			w.Wake()
			return nil
		})
	}
}

// Wake requests a batch without waiting for the next tick; it never blocks
func (w *OutboxWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start begins the polling loop
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("OutboxWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *OutboxWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("OutboxWorker stopped", zap.Int("sent", stats.Sent), zap.Int("failed", stats.Failed))
	return nil
}

func (w *OutboxWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}

		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Failed to process outbox", zap.Error(err))
		}
	}
}

// ProcessOnce delivers one batch and returns the number of messages sent.
// After a failure the user's later messages wait for the next batch so each
// user receives messages in creation order.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	w.run.Lock()
	defer w.run.Unlock()

	messages, err := w.outbox.FetchPending(ctx, w.config.BatchSize)
	if err != nil {
		w.recordRun(0, 0, err)
		return 0, fmt.Errorf("failed to fetch pending messages: %w", err)
	}

	blocked := make(map[int64]bool)
	sent, failed := 0, 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if blocked[msg.UserID] {
			continue
		}

		if err := w.deliver(ctx, msg); err != nil {
			blocked[msg.UserID] = true
			failed++
			continue
		}
		sent++
	}

	w.recordRun(sent, failed, nil)
	return sent, nil
}

func (w *OutboxWorker) deliver(ctx context.Context, msg *entity.OutboxMessage) error {
	sender, ok := w.registry.Sender(msg.Channel)
	if !ok {
		// no sender will ever appear for this message in this process
		err := apperror.DeliveryFailed(string(msg.Channel), fmt.Errorf("no sender registered"))
		w.markFailed(ctx, msg, err, 1)
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()

	if err := sender.Send(sendCtx, msg); err != nil {
		failure := apperror.DeliveryFailed(string(msg.Channel), err)
		w.markFailed(ctx, msg, failure, w.config.MaxAttempts)
		return failure
	}

	if err := w.outbox.MarkSent(ctx, msg.ID, w.clock.Now()); err != nil {
		w.logger.Error("Failed to mark outbox message sent", zap.Int64("message_id", msg.ID), zap.Error(err))
		return err
	}

	w.logger.Debug("Outbox message delivered",
		zap.Int64("message_id", msg.ID),
		zap.Int64("user_id", msg.UserID),
		zap.String("channel", string(msg.Channel)))
	return nil
}

func (w *OutboxWorker) markFailed(ctx context.Context, msg *entity.OutboxMessage, failure error, maxAttempts int) {
	w.logger.Warn("Notification delivery failed",
		zap.Int64("message_id", msg.ID),
		zap.Int64("user_id", msg.UserID),
		zap.String("channel", string(msg.Channel)),
		zap.Int("attempt", msg.Attempts+1),
		zap.Int("max_attempts", maxAttempts),
		zap.Error(failure))

	if err := w.outbox.MarkFailed(ctx, msg.ID, failure.Error(), maxAttempts); err != nil {
		w.logger.Error("Failed to record delivery failure", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
}

func (w *OutboxWorker) recordRun(sent, failed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent += sent
	w.failed += failed
	w.lastRun = time.Now()
	w.lastError = err
}

// Stats returns the worker's counters
func (w *OutboxWorker) Stats() OutboxStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := OutboxStats{
		Running:     w.isRunning,
		Sent:        w.sent,
		Failed:      w.failed,
		LastRun:     w.lastRun,
		PollSeconds: w.config.PollInterval.Seconds(),
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}
