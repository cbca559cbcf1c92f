package entity

import "time"

// Channel is a notification delivery channel
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelSMS   Channel = "sms"
)

// IsExternal reports whether the channel is delivered through the outbox
func (c Channel) IsExternal() bool {
	return c == ChannelEmail || c == ChannelChat || c == ChannelSMS
}

// IsValid returns true for a known channel
func (c Channel) IsValid() bool {
	return c == ChannelInApp || c.IsExternal()
}

// Outbox message status constants
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// Notification is an in-app inbox entry
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RequestID *int64    `json:"request_id,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationSettings are a user's channel preferences. Push maps to the chat channel.
type NotificationSettings struct {
	UserID       int64     `json:"user_id"`
	EmailEnabled bool      `json:"email_enabled"`
	SMSEnabled   bool      `json:"sms_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultNotificationSettings returns e-mail only preferences
func DefaultNotificationSettings(userID int64) *NotificationSettings {
	return &NotificationSettings{
		UserID:       userID,
		EmailEnabled: true,
	}
}

// EnabledChannels lists the external channels switched on, in delivery order
func (s *NotificationSettings) EnabledChannels() []Channel {
	var channels []Channel
	if s.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if s.PushEnabled {
		channels = append(channels, ChannelChat)
	}
	if s.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// OutboxMessage is a durable external delivery waiting for the outbox worker
type OutboxMessage struct {
	ID             int64      `json:"id"`
	NotificationID *int64     `json:"notification_id,omitempty"`
	UserID         int64      `json:"user_id"`
	Channel        Channel    `json:"channel"`
	Recipient      string     `json:"recipient"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}
