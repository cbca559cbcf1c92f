package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// imMessageAPI is the subset of the SDK's IM message resource the messenger uses
type imMessageAPI interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// messageCreator sends one built message body to a receiver id type
type messageCreator interface {
	Create(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error)
}

// sdkMessages wraps the SDK resource into a request
type sdkMessages struct {
	api imMessageAPI
}

func (s sdkMessages) Create(ctx context.Context, receiveIDType string, body *larkIm.CreateMessageReqBody) (*larkIm.CreateMessageResp, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(body).
		Build()
	return s.api.Create(ctx, req)
}

// Messenger implements port.ChatMessenger and port.ChannelSender on Lark IM.
// Users are addressed by e-mail so no open_id mapping is needed.
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: client.messages(),
		logger:   logger,
	}
}

func newMessenger(messages messageCreator, logger *zap.Logger) *Messenger {
	return &Messenger{messages: messages, logger: logger}
}

// SendText sends a plain text message to the user with the given e-mail
func (m *Messenger) SendText(ctx context.Context, email, text string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	body := larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(email).
		MsgType(larkIm.MsgTypeText).
		Content(string(content)).
		Build()

	resp, err := m.messages.Create(ctx, larkIm.ReceiveIdTypeEmail, body)
	if err != nil {
		m.logger.Error("Failed to send message", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("email", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully", zap.String("message_id", messageID), zap.String("email", email))
	return nil
}

// Channel implements port.ChannelSender
func (m *Messenger) Channel() entity.Channel {
	return entity.ChannelChat
}

// Send delivers an outbox message as "subject\n\nbody"
func (m *Messenger) Send(ctx context.Context, msg *entity.OutboxMessage) error {
	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	return m.SendText(ctx, msg.Recipient, text)
}

var (
	_ port.ChatMessenger = (*Messenger)(nil)
	_ port.ChannelSender = (*Messenger)(nil)
)
