package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// dialer is the part of *mail.Client the mailer needs
type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends plain text e-mail over SMTP
type Mailer struct {
	client dialer
	from   string
	logger *zap.Logger
}

// NewMailer creates an SMTP mailer. Authentication is only enabled when a username is set.
func NewMailer(cfg Config, logger *zap.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return newMailer(client, cfg.From, logger), nil
}

func newMailer(client dialer, from string, logger *zap.Logger) *Mailer {
	return &Mailer{client: client, from: from, logger: logger}
}

// Send delivers one message to every recipient
func (m *Mailer) Send(ctx context.Context, subject string, recipients []string, body string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("Failed to send email",
			zap.Strings("recipients", recipients),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", zap.Strings("recipients", recipients), zap.String("subject", subject))
	return nil
}

var _ port.Mailer = (*Mailer)(nil)
