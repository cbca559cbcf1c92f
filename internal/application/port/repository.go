package port

import (
	"context"
	"time"

	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/workflow"
)

// Lookups return (nil, nil) when the row does not exist.

// RoleRepository defines persistence operations for Role
type RoleRepository interface {
	GetByName(ctx context.Context, name entity.RoleName) (*entity.Role, error)
	List(ctx context.Context) ([]*entity.Role, error)
	Upsert(ctx context.Context, role *entity.Role) error
}

// BranchRepository defines persistence operations for Branch
type BranchRepository interface {
	Create(ctx context.Context, branch *entity.Branch) error
	GetByID(ctx context.Context, id int64) (*entity.Branch, error)
	GetByName(ctx context.Context, name string) (*entity.Branch, error)
	List(ctx context.Context) ([]*entity.Branch, error)
}

// DepartmentRepository defines persistence operations for Department
type DepartmentRepository interface {
	Create(ctx context.Context, dept *entity.Department) error
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	GetByName(ctx context.Context, branchID int64, name string) (*entity.Department, error)
	// FirstByName returns the lowest id department called name in any branch
	FirstByName(ctx context.Context, name string) (*entity.Department, error)
	ListByBranch(ctx context.Context, branchID int64) ([]*entity.Department, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	// GetByLogin matches username or e-mail
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	// FindActiveByRole returns active, non-deleted holders of role ordered by id.
	// A nil departmentID matches every department.
	FindActiveByRole(ctx context.Context, role entity.RoleName, departmentID *int64) ([]*entity.User, error)
}

// RequestFilter narrows request listings; zero values match everything
type RequestFilter struct {
	Statuses     []workflow.State
	DepartmentID *int64
	Type         entity.RequestType
	OfficerID    *int64
	Limit        int
	Offset       int
}

// StatusUpdate is a conditional status change guarded by the expected status and version
type StatusUpdate struct {
	RequestID             int64
	FromStatus            workflow.State
	ToStatus              workflow.State
	ExpectedVersion       int64
	RejectionReason       string
	IncrementResubmission bool
	UpdatedAt             time.Time
}

// RequestRepository defines persistence operations for Request and its child rows
type RequestRepository interface {
	// Create inserts the common row, type details, line items and documents
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]*entity.Request, error)
	// UpdateStatus applies update only if status and version still match; false means stale
	UpdateStatus(ctx context.Context, update StatusUpdate) (bool, error)
}

// WorkflowRepository defines persistence operations for ExpenseApprovalWorkflow
type WorkflowRepository interface {
	Create(ctx context.Context, wf *entity.ExpenseApprovalWorkflow) error
	GetByRequestID(ctx context.Context, requestID int64) (*entity.ExpenseApprovalWorkflow, error)
	Update(ctx context.Context, wf *entity.ExpenseApprovalWorkflow) error
}

// HistoryRepository is the append-only request change log
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.RequestHistory) error
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error)
	Latest(ctx context.Context, requestID int64) (*entity.RequestHistory, error)
}

// AuditRepository is the append-only audit log. It has no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error)
}

// NotificationRepository defines persistence operations for in-app notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error)
	// MarkRead returns false when the notification does not belong to userID
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
}

// SettingsRepository defines persistence operations for NotificationSettings
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (*entity.NotificationSettings, error)
	Upsert(ctx context.Context, settings *entity.NotificationSettings) error
}

// OutboxRepository is the durable queue of external deliveries
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *entity.OutboxMessage) error
	// FetchPending returns PENDING messages in id order
	FetchPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	// MarkFailed records errMsg and moves the message to FAILED once attempts reach maxAttempts
	MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error
	ListByUser(ctx context.Context, userID int64) ([]*entity.OutboxMessage, error)
}

// TransactionManager runs fn in one database transaction carried on the context
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
