package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// DefaultNotificationSubject is used for external messages sent without a subject
const DefaultNotificationSubject = "Expense request update"

const inboxPageSize = 100

// NotifyResult reports what a notify call wrote
type NotifyResult struct {
	NotificationID int64            `json:"notification_id,omitempty"`
	Enqueued       []entity.Channel `json:"enqueued,omitempty"`
	// Skipped lists enabled channels without a registered sender
	Skipped []entity.Channel `json:"skipped,omitempty"`
}

// ChannelRegistry holds the external channel senders available to the outbox worker
type ChannelRegistry struct {
	mu      sync.RWMutex
	senders map[entity.Channel]port.ChannelSender
}

// NewChannelRegistry creates a registry with the given senders
func NewChannelRegistry(senders ...port.ChannelSender) *ChannelRegistry {
	r := &ChannelRegistry{senders: make(map[entity.Channel]port.ChannelSender)}
	for _, sender := range senders {
		r.Register(sender)
	}
	return r
}

// Register adds or replaces the sender for its channel
func (r *ChannelRegistry) Register(sender port.ChannelSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[sender.Channel()] = sender
}

// Sender returns the sender registered for channel
func (r *ChannelRegistry) Sender(channel entity.Channel) (port.ChannelSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[channel]
	return sender, ok
}

// Channels lists the registered channels in name order
func (r *ChannelRegistry) Channels() []entity.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channels := make([]entity.Channel, 0, len(r.senders))
	for ch := range r.senders {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// NotificationService writes inbox rows and outbox messages
type NotificationService interface {
	// Notify writes to one channel: an inbox row for in-app, an outbox message otherwise
	Notify(ctx context.Context, userID int64, channel entity.Channel, message string) (*NotifyResult, error)
	// NotifyUser writes an inbox row plus one outbox message per enabled, registered channel
	NotifyUser(ctx context.Context, userID int64, requestID *int64, subject, body string) (*NotifyResult, error)
	List(ctx context.Context, userID int64, unreadOnly bool) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	GetSettings(ctx context.Context, userID int64) (*entity.NotificationSettings, error)
	UpdateSettings(ctx context.Context, settings *entity.NotificationSettings) error
	Outbox(ctx context.Context, userID int64) ([]*entity.OutboxMessage, error)
}

type notificationServiceImpl struct {
	userRepo         port.UserRepository
	notificationRepo port.NotificationRepository
	settingsRepo     port.SettingsRepository
	outboxRepo       port.OutboxRepository
	auditRepo        port.AuditRepository
	registry         port.ChannelRegistry
	txManager        port.TransactionManager
	clock            port.Clock
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	notificationRepo port.NotificationRepository,
	settingsRepo port.SettingsRepository,
	outboxRepo port.OutboxRepository,
	auditRepo port.AuditRepository,
	registry port.ChannelRegistry,
	txManager port.TransactionManager,
	clock port.Clock,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		settingsRepo:     settingsRepo,
		outboxRepo:       outboxRepo,
		auditRepo:        auditRepo,
		registry:         registry,
		txManager:        txManager,
		clock:            clock,
		logger:           logger,
	}
}

func (s *notificationServiceImpl) getUser(ctx context.Context, userID int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user", userID)
	}
	return user, nil
}

// Notify joins the caller's transaction when one is on ctx
func (s *notificationServiceImpl) Notify(ctx context.Context, userID int64, channel entity.Channel, message string) (*NotifyResult, error) {
	if !channel.IsValid() {
		return nil, apperror.Validation(apperror.FieldError{Field: "channel", Message: "unknown channel"})
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &NotifyResult{}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if channel == entity.ChannelInApp {
			id, err := s.createInbox(txCtx, user.ID, nil, message)
			if err != nil {
				return err
			}
			result.NotificationID = id
			return nil
		}
		return s.enqueue(txCtx, result, user, channel, nil, DefaultNotificationSubject, message)
	})
	if err != nil {
		s.logger.Error("Failed to notify user", "error", err, "user_id", userID, "channel", channel)
		return nil, err
	}
	return result, nil
}

// NotifyUser joins the caller's transaction when one is on ctx
func (s *notificationServiceImpl) NotifyUser(ctx context.Context, userID int64, requestID *int64, subject, body string) (*NotifyResult, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &NotifyResult{}
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		id, err := s.createInbox(txCtx, user.ID, requestID, body)
		if err != nil {
			return err
		}
		result.NotificationID = id

		for _, channel := range settings.EnabledChannels() {
			if err := s.enqueue(txCtx, result, user, channel, &id, subject, body); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to notify user", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("User notified",
		"user_id", userID,
		"notification_id", result.NotificationID,
		"enqueued", len(result.Enqueued),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *notificationServiceImpl) createInbox(ctx context.Context, userID int64, requestID *int64, message string) (int64, error) {
	n := &entity.Notification{
		UserID:    userID,
		RequestID: requestID,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return 0, fmt.Errorf("create notification: %w", err)
	}
	return n.ID, nil
}

func (s *notificationServiceImpl) enqueue(ctx context.Context, result *NotifyResult, user *entity.User, channel entity.Channel, notificationID *int64, subject, body string) error {
	if s.registry == nil {
		result.Skipped = append(result.Skipped, channel)
		return nil
	}
	if _, ok := s.registry.Sender(channel); !ok {
		result.Skipped = append(result.Skipped, channel)
		return nil
	}

	msg := &entity.OutboxMessage{
		NotificationID: notificationID,
		UserID:         user.ID,
		Channel:        channel,
		Recipient:      user.Email,
		Subject:        subject,
		Body:           body,
		Status:         entity.OutboxStatusPending,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.outboxRepo.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s message: %w", channel, err)
	}
	result.Enqueued = append(result.Enqueued, channel)
	return nil
}

// List returns the newest inbox entries first
func (s *notificationServiceImpl) List(ctx context.Context, userID int64, unreadOnly bool) ([]*entity.Notification, error) {
	items, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, inboxPageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead only touches notifications owned by userID
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID int64) error {
	ok, err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !ok {
		return apperror.NotFound("notification", notificationID)
	}
	return nil
}

// GetSettings returns the stored preferences or the defaults
func (s *notificationServiceImpl) GetSettings(ctx context.Context, userID int64) (*entity.NotificationSettings, error) {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return entity.DefaultNotificationSettings(userID), nil
	}
	return settings, nil
}

// UpdateSettings stores the preferences and audits the change
func (s *notificationServiceImpl) UpdateSettings(ctx context.Context, settings *entity.NotificationSettings) error {
	if _, err := s.getUser(ctx, settings.UserID); err != nil {
		return err
	}

	previous, err := s.GetSettings(ctx, settings.UserID)
	if err != nil {
		return err
	}

	settings.UpdatedAt = s.clock.Now()
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.settingsRepo.Upsert(txCtx, settings); err != nil {
			return fmt.Errorf("upsert settings: %w", err)
		}
		entry := &entity.AuditLog{
			Action:        entity.ActionSettingsSaved,
			EntityType:    entity.EntityTypeUser,
			EntityID:      settings.UserID,
			PerformedBy:   settings.UserID,
			PreviousValue: Snapshot(previous),
			NewValue:      Snapshot(settings),
			PerformedAt:   settings.UpdatedAt,
		}
		if err := s.auditRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
}

// Outbox lists the external deliveries queued for a user
func (s *notificationServiceImpl) Outbox(ctx context.Context, userID int64) ([]*entity.OutboxMessage, error) {
	msgs, err := s.outboxRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return msgs, nil
}
