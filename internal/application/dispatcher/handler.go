package dispatcher

import (
	"context"

	"github.com/esunday5/staff-portal/internal/domain/event"
)

// Handler reacts to a committed request event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
