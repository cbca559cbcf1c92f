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

// RoleRepository implements port.RoleRepository
type RoleRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sqlstore.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name entity.RoleName) (*entity.Role, error) {
	query := `SELECT id, name, department_scoped, created_at FROM roles WHERE name = ?`

	var role entity.Role
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, string(name)).Scan(
		&role.ID, &role.Name, &role.DepartmentScoped, &role.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role", zap.String("name", string(name)), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// List returns every role ordered by id
func (r *RoleRepository) List(ctx context.Context) ([]*entity.Role, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `SELECT id, name, department_scoped, created_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*entity.Role
	for rows.Next() {
		var role entity.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DepartmentScoped, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

// Upsert inserts the role or refreshes its scope flag
func (r *RoleRepository) Upsert(ctx context.Context, role *entity.Role) error {
	role.CreatedAt = nowIfZero(role.CreatedAt)
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO roles (name, department_scoped, created_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET department_scoped = excluded.department_scoped`,
		string(role.Name), role.DepartmentScoped, role.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert role", zap.String("name", string(role.Name)), zap.Error(err))
		return fmt.Errorf("failed to upsert role: %w", err)
	}
	role.ID = id
	return nil
}

// BranchRepository implements port.BranchRepository
type BranchRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *sqlstore.DB, logger *zap.Logger) port.BranchRepository {
	return &BranchRepository{db: db, logger: logger}
}

// Create inserts a branch
func (r *BranchRepository) Create(ctx context.Context, branch *entity.Branch) error {
	branch.CreatedAt = nowIfZero(branch.CreatedAt)
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO branches (name, created_at) VALUES (?, ?)`,
		branch.Name, branch.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create branch", zap.String("name", branch.Name), zap.Error(err))
		return fmt.Errorf("failed to create branch: %w", err)
	}
	branch.ID = id
	return nil
}

// GetByID retrieves a branch by ID
func (r *BranchRepository) GetByID(ctx context.Context, id int64) (*entity.Branch, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM branches WHERE id = ?`, id)
}

// GetByName retrieves a branch by name
func (r *BranchRepository) GetByName(ctx context.Context, name string) (*entity.Branch, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM branches WHERE name = ?`, name)
}

func (r *BranchRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Branch, error) {
	var b entity.Branch
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, arg).Scan(&b.ID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return &b, nil
}

// List returns every branch ordered by id
func (r *BranchRepository) List(ctx context.Context) ([]*entity.Branch, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `SELECT id, name, created_at FROM branches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []*entity.Branch
	for rows.Next() {
		var b entity.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, &b)
	}
	return branches, rows.Err()
}

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sqlstore.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{db: db, logger: logger}
}

const departmentColumns = `id, name, branch_id, created_at`

// Create inserts a department
func (r *DepartmentRepository) Create(ctx context.Context, dept *entity.Department) error {
	dept.CreatedAt = nowIfZero(dept.CreatedAt)
	id, err := r.db.InsertReturningID(ctx,
		`INSERT INTO departments (name, branch_id, created_at) VALUES (?, ?, ?)`,
		dept.Name, dept.BranchID, dept.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create department",
			zap.String("name", dept.Name),
			zap.Int64("branch_id", dept.BranchID),
			zap.Error(err))
		return fmt.Errorf("failed to create department: %w", err)
	}
	dept.ID = id
	return nil
}

// GetByID retrieves a department by ID
func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	return r.getOne(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id)
}

// GetByName retrieves a department of a branch by name
func (r *DepartmentRepository) GetByName(ctx context.Context, branchID int64, name string) (*entity.Department, error) {
	return r.getOne(ctx, `SELECT `+departmentColumns+` FROM departments WHERE branch_id = ? AND name = ?`, branchID, name)
}

// FirstByName returns the lowest id department with name across branches
func (r *DepartmentRepository) FirstByName(ctx context.Context, name string) (*entity.Department, error) {
	return r.getOne(ctx, `SELECT `+departmentColumns+` FROM departments WHERE name = ? ORDER BY id LIMIT 1`, name)
}

func (r *DepartmentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Department, error) {
	var d entity.Department
	err := r.db.Conn(ctx).QueryRowContext(ctx, query, args...).Scan(&d.ID, &d.Name, &d.BranchID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &d, nil
}

// ListByBranch returns the departments of a branch ordered by name
func (r *DepartmentRepository) ListByBranch(ctx context.Context, branchID int64) ([]*entity.Department, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE branch_id = ? ORDER BY name`, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var depts []*entity.Department
	for rows.Next() {
		var d entity.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.BranchID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		depts = append(depts, &d)
	}
	return depts, rows.Err()
}
