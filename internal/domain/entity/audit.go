package entity

import (
	"time"

	"github.com/esunday5/staff-portal/internal/domain/workflow"
)

// Entity types recorded in the audit log
const (
	EntityTypeRequest = "request"
	EntityTypeUser    = "user"
)

// History and audit actions besides the workflow triggers
const (
	ActionCreate        = "CREATE"
	ActionStatusChange  = "STATUS_CHANGE"
	ActionUserCreated   = "USER_CREATED"
	ActionSettingsSaved = "NOTIFICATION_SETTINGS_UPDATED"
)

// RequestHistory is one append-only entry of a request's change log
type RequestHistory struct {
	ID             int64          `json:"id"`
	RequestID      int64          `json:"request_id"`
	RequestType    RequestType    `json:"request_type"`
	PreviousStatus workflow.State `json:"previous_status,omitempty"`
	NewStatus      workflow.State `json:"new_status"`
	Action         string         `json:"action"`
	ActorID        int64          `json:"actor_id"`
	Comment        string         `json:"comment,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AuditLog is an append-only compliance record; values are JSON snapshots
type AuditLog struct {
	ID            int64     `json:"id"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      int64     `json:"entity_id"`
	PerformedBy   int64     `json:"performed_by"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
	PerformedAt   time.Time `json:"performed_at"`
}
