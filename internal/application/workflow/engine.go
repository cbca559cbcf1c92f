package workflow

import (
	"context"

	"github.com/esunday5/staff-portal/internal/domain/entity"
	domainwf "github.com/esunday5/staff-portal/internal/domain/workflow"
)

// DecisionInput is one reviewer decision on a request
type DecisionInput struct {
	RequestID int64
	Actor     *entity.User
	Decision  domainwf.Trigger
	Reason    string
	// ExpectedVersion, when set, must equal the stored version
	ExpectedVersion *int64
}

// DecisionResult describes the state after a decision
type DecisionResult struct {
	Request       *entity.Request `json:"request"`
	PreviousState domainwf.State  `json:"previous_state"`
	State         domainwf.State  `json:"state"`
	// Idempotent is true when the decision had already been applied and nothing was written
	Idempotent   bool         `json:"idempotent"`
	NextApprover *entity.User `json:"next_approver,omitempty"`
}

// Engine drives requests through the approval pipeline
type Engine interface {
	// ApplyDecision authorizes and applies Approve, Reject or Return atomically
	ApplyDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error)

	// Resubmit moves a returned request back to PENDING on behalf of its officer
	Resubmit(ctx context.Context, requestID int64, officer *entity.User, expectedVersion *int64) (*DecisionResult, error)

	// History returns the request's transitions in commit order
	History(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error)

	// RequiredRole returns the role that acts on a request of type rt in state
	RequiredRole(rt entity.RequestType, state domainwf.State) (entity.RoleName, bool)

	// AvailableDecisions lists the decisions that state accepts
	AvailableDecisions(rt entity.RequestType, state domainwf.State) []domainwf.Trigger
}
