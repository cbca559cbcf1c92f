package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/pkg/utils"
)

// MaxApproverCacheTTL bounds how long a resolved approver may be served from cache
const MaxApproverCacheTTL = 60 * time.Second

// CreateUserInput carries the fields needed to provision a staff account
type CreateUserInput struct {
	Username     string          `json:"username" validate:"required,max=80"`
	Email        string          `json:"email" validate:"required,email"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Password     string          `json:"password" validate:"required,min=8"`
	Role         entity.RoleName `json:"role" validate:"required"`
	DepartmentID *int64          `json:"department_id"`
	ActorID      int64           `json:"-"`
}

// DirectoryService answers who holds which role where
type DirectoryService interface {
	// ResolveApprover returns the active holder of role for departmentID, or nil when nobody qualifies
	ResolveApprover(ctx context.Context, role entity.RoleName, departmentID int64) (*entity.User, error)
	ResolveRoleID(ctx context.Context, name entity.RoleName) (int64, bool, error)
	Authenticate(ctx context.Context, login, password string) (*entity.User, error)
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	GetDepartment(ctx context.Context, id int64) (*entity.Department, error)
	// FindDepartment returns the lowest id department called name in any branch, or NotFound
	FindDepartment(ctx context.Context, name string) (*entity.Department, error)
	ListBranches(ctx context.Context) ([]*entity.Branch, error)
	ListDepartments(ctx context.Context, branchID int64) ([]*entity.Department, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*entity.User, error)
}

type directoryServiceImpl struct {
	roleRepo   port.RoleRepository
	branchRepo port.BranchRepository
	deptRepo   port.DepartmentRepository
	userRepo   port.UserRepository
	auditRepo  port.AuditRepository
	txManager  port.TransactionManager
	cache      port.ApproverCache
	cacheTTL   time.Duration
	validator  *utils.Validator
	clock      port.Clock
	logger     Logger
}

// NewDirectoryService creates a new DirectoryService. cacheTTL is clamped to MaxApproverCacheTTL.
func NewDirectoryService(
	roleRepo port.RoleRepository,
	branchRepo port.BranchRepository,
	deptRepo port.DepartmentRepository,
	userRepo port.UserRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	cache port.ApproverCache,
	cacheTTL time.Duration,
	clock port.Clock,
	logger Logger,
) DirectoryService {
	if cacheTTL <= 0 || cacheTTL > MaxApproverCacheTTL {
		cacheTTL = MaxApproverCacheTTL
	}
	return &directoryServiceImpl{
		roleRepo:   roleRepo,
		branchRepo: branchRepo,
		deptRepo:   deptRepo,
		userRepo:   userRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		cache:      cache,
		cacheTTL:   cacheTTL,
		validator:  utils.NewValidator(),
		clock:      clock,
		logger:     logger,
	}
}

func approverCacheKey(role entity.RoleName, scoped bool, departmentID int64) string {
	if !scoped {
		return fmt.Sprintf("%s:*", role)
	}
	return fmt.Sprintf("%s:%d", role, departmentID)
}

// ResolveApprover looks the approver up through the cache. A cached id is
// re-read and re-checked so deactivated users are never routed work.
func (s *directoryServiceImpl) ResolveApprover(ctx context.Context, role entity.RoleName, departmentID int64) (*entity.User, error) {
	r, err := s.roleRepo.GetByName(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if r == nil {
		return nil, nil
	}

	key := approverCacheKey(role, r.DepartmentScoped, departmentID)

	if s.cache != nil {
		userID, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Error("Approver cache read failed", "error", err, "key", key)
		} else if found {
			if userID == 0 {
				return nil, nil
			}
			user, err := s.userRepo.GetByID(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("get cached approver: %w", err)
			}
			if qualifies(user, role, r.DepartmentScoped, departmentID) {
				return user, nil
			}
		}
	}

	var deptFilter *int64
	if r.DepartmentScoped {
		deptFilter = &departmentID
	}
	users, err := s.userRepo.FindActiveByRole(ctx, role, deptFilter)
	if err != nil {
		return nil, fmt.Errorf("find approver: %w", err)
	}

	var approver *entity.User
	var cachedID int64
	if len(users) > 0 {
		approver = users[0]
		cachedID = approver.ID
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedID, s.cacheTTL); err != nil {
			s.logger.Error("Approver cache write failed", "error", err, "key", key)
		}
	}

	return approver, nil
}

func qualifies(user *entity.User, role entity.RoleName, scoped bool, departmentID int64) bool {
	if user == nil || !user.IsEligible() || !user.HasRole(role) {
		return false
	}
	return !scoped || user.InDepartment(departmentID)
}

// ResolveRoleID returns the id of the named role
func (s *directoryServiceImpl) ResolveRoleID(ctx context.Context, name entity.RoleName) (int64, bool, error) {
	role, err := s.roleRepo.GetByName(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("get role: %w", err)
	}
	if role == nil {
		return 0, false, nil
	}
	return role.ID, true, nil
}

// Authenticate checks a username or e-mail and password against the directory
func (s *directoryServiceImpl) Authenticate(ctx context.Context, login, password string) (*entity.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.Unauthenticated("username and password are required")
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.IsEligible() {
		return nil, apperror.Unauthenticated("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.Unauthenticated("invalid credentials")
	}

	return user, nil
}

// GetUser returns the user or NotFound
func (s *directoryServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user", id)
	}
	return user, nil
}

// GetDepartment returns the department or NotFound
func (s *directoryServiceImpl) GetDepartment(ctx context.Context, id int64) (*entity.Department, error) {
	dept, err := s.deptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return nil, apperror.NotFound("department", id)
	}
	return dept, nil
}

func (s *directoryServiceImpl) FindDepartment(ctx context.Context, name string) (*entity.Department, error) {
	dept, err := s.deptRepo.FirstByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find department: %w", err)
	}
	if dept == nil {
		return nil, apperror.NotFound("department", name)
	}
	return dept, nil
}

// ListBranches returns every branch in creation order
func (s *directoryServiceImpl) ListBranches(ctx context.Context) ([]*entity.Branch, error) {
	branches, err := s.branchRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// ListDepartments returns the departments of a branch
func (s *directoryServiceImpl) ListDepartments(ctx context.Context, branchID int64) ([]*entity.Department, error) {
	branch, err := s.branchRepo.GetByID(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	if branch == nil {
		return nil, apperror.NotFound("branch", branchID)
	}

	depts, err := s.deptRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

// CreateUser validates input, hashes the password and stores the account
func (s *directoryServiceImpl) CreateUser(ctx context.Context, input CreateUserInput) (*entity.User, error) {
	violations, err := s.validator.Struct(input)
	if err != nil {
		return nil, fmt.Errorf("validate user: %w", err)
	}
	fields := toFieldErrors(violations)

	role, err := s.roleRepo.GetByName(ctx, input.Role)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if input.Role != "" && role == nil {
		fields = append(fields, apperror.FieldError{Field: "role", Message: "unknown role"})
	}

	if input.DepartmentID != nil {
		dept, err := s.deptRepo.GetByID(ctx, *input.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("get department: %w", err)
		}
		if dept == nil {
			fields = append(fields, apperror.FieldError{Field: "department_id", Message: "unknown department"})
		}
	}

	if len(fields) > 0 {
		return nil, apperror.Validation(fields...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	roleID := role.ID
	user := &entity.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: string(hash),
		RoleID:       &roleID,
		DepartmentID: input.DepartmentID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		entry := &entity.AuditLog{
			Action:      entity.ActionUserCreated,
			EntityType:  entity.EntityTypeUser,
			EntityID:    user.ID,
			PerformedBy: input.ActorID,
			NewValue:    Snapshot(map[string]interface{}{"username": user.Username, "role": input.Role}),
			PerformedAt: now,
		}
		if err := s.auditRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create user", "error", err, "username", user.Username)
		return nil, err
	}

	user.RoleName = role.Name
	user.DepartmentScoped = role.DepartmentScoped

	s.logger.Info("User created", "user_id", user.ID, "username", user.Username, "role", role.Name)
	return user, nil
}

func toFieldErrors(violations []utils.FieldViolation) []apperror.FieldError {
	fields := make([]apperror.FieldError, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, apperror.FieldError{Field: v.Field, Message: v.Message})
	}
	return fields
}
