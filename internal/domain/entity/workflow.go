package entity

import (
	"time"

	"github.com/esunday5/staff-portal/internal/domain/workflow"
)

// ExpenseApprovalWorkflow records who acted at each stage of one request
type ExpenseApprovalWorkflow struct {
	ID           int64          `json:"id"`
	RequestID    int64          `json:"request_id"`
	OfficerID    *int64         `json:"officer_id,omitempty"`
	SupervisorID *int64         `json:"supervisor_id,omitempty"`
	ReviewerID   *int64         `json:"reviewer_id,omitempty"`
	ApproverID   *int64         `json:"approver_id,omitempty"`
	Status       workflow.State `json:"status"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RecordActor stores userID in the slot of role; other roles are ignored
func (w *ExpenseApprovalWorkflow) RecordActor(role RoleName, userID int64) {
	id := userID
	switch role {
	case RoleOfficer:
		w.OfficerID = &id
	case RoleSupervisor:
		w.SupervisorID = &id
	case RoleReviewer:
		w.ReviewerID = &id
	case RoleApprover:
		w.ApproverID = &id
	}
}
