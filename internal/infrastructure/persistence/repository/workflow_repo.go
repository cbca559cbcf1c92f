package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new approval workflow repository
func NewWorkflowRepository(db *sqlstore.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts the tracking row of a request
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.ExpenseApprovalWorkflow) error {
	wf.UpdatedAt = nowIfZero(wf.UpdatedAt)
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO expense_approval_workflows (
			request_id, officer_id, supervisor_id, reviewer_id, approver_id, status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		wf.RequestID,
		nullableID(wf.OfficerID),
		nullableID(wf.SupervisorID),
		nullableID(wf.ReviewerID),
		nullableID(wf.ApproverID),
		string(wf.Status),
		wf.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval workflow", zap.Int64("request_id", wf.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create approval workflow: %w", err)
	}
	wf.ID = id
	return nil
}

// GetByRequestID retrieves the tracking row of a request
func (r *WorkflowRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.ExpenseApprovalWorkflow, error) {
	var wf entity.ExpenseApprovalWorkflow
	var officer, supervisor, reviewer, approver sql.NullInt64

	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, request_id, officer_id, supervisor_id, reviewer_id, approver_id, status, updated_at
		FROM expense_approval_workflows WHERE request_id = ?`, requestID).Scan(
		&wf.ID, &wf.RequestID, &officer, &supervisor, &reviewer, &approver, &wf.Status, &wf.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval workflow: %w", err)
	}

	wf.OfficerID = idPtr(officer)
	wf.SupervisorID = idPtr(supervisor)
	wf.ReviewerID = idPtr(reviewer)
	wf.ApproverID = idPtr(approver)
	return &wf, nil
}

// Update overwrites actor references and status
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.ExpenseApprovalWorkflow) error {
	wf.UpdatedAt = nowIfZero(wf.UpdatedAt)
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE expense_approval_workflows
		SET officer_id = ?, supervisor_id = ?, reviewer_id = ?, approver_id = ?, status = ?, updated_at = ?
		WHERE request_id = ?`,
		nullableID(wf.OfficerID),
		nullableID(wf.SupervisorID),
		nullableID(wf.ReviewerID),
		nullableID(wf.ApproverID),
		string(wf.Status),
		wf.UpdatedAt,
		wf.RequestID,
	)
	if err != nil {
		r.logger.Error("Failed to update approval workflow", zap.Int64("request_id", wf.RequestID), zap.Error(err))
		return fmt.Errorf("failed to update approval workflow: %w", err)
	}
	return nil
}
