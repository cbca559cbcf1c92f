package email

import (
	"context"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// ChannelSender delivers e-mail outbox messages through a port.Mailer
type ChannelSender struct {
	mailer port.Mailer
}

// NewChannelSender creates the e-mail channel sender
func NewChannelSender(mailer port.Mailer) *ChannelSender {
	return &ChannelSender{mailer: mailer}
}

func (s *ChannelSender) Channel() entity.Channel {
	return entity.ChannelEmail
}

func (s *ChannelSender) Send(ctx context.Context, msg *entity.OutboxMessage) error {
	return s.mailer.Send(ctx, msg.Subject, []string{msg.Recipient}, msg.Body)
}

var _ port.ChannelSender = (*ChannelSender)(nil)
