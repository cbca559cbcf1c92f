package port

import (
	"context"
	"time"

	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// ChannelSender delivers one outbox message over an external channel
type ChannelSender interface {
	Channel() entity.Channel
	Send(ctx context.Context, msg *entity.OutboxMessage) error
}

// Mailer is the e-mail collaborator; callers treat it as best effort
type Mailer interface {
	Send(ctx context.Context, subject string, recipients []string, body string) error
}

// ChatMessenger posts a plain text message to a user identified by e-mail
type ChatMessenger interface {
	SendText(ctx context.Context, email, text string) error
}

// ApproverCache stores resolved approver ids; 0 records "nobody configured"
type ApproverCache interface {
	Get(ctx context.Context, key string) (userID int64, found bool, err error)
	Set(ctx context.Context, key string, userID int64, ttl time.Duration) error
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// ChannelRegistry looks up the sender registered for an external channel
type ChannelRegistry interface {
	Sender(channel entity.Channel) (ChannelSender, bool)
}
