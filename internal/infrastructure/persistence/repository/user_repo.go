package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlstore.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userSelect = `
	SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
		u.role_id, COALESCE(r.name, ''), COALESCE(r.department_scoped, TRUE),
		u.department_id, d.branch_id,
		u.is_active, u.email_verified, u.is_deleted, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
	LEFT JOIN departments d ON d.id = u.department_id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var roleID, departmentID, branchID sql.NullInt64
	var roleName string

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&roleID, &roleName, &u.DepartmentScoped,
		&departmentID, &branchID,
		&u.IsActive, &u.EmailVerified, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.RoleID = idPtr(roleID)
	u.RoleName = entity.RoleName(roleName)
	u.DepartmentID = idPtr(departmentID)
	u.BranchID = idPtr(branchID)
	return &u, nil
}

// Create inserts a user; the password must already be hashed
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	user.CreatedAt = nowIfZero(user.CreatedAt)
	user.UpdatedAt = user.CreatedAt

	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO users (
			username, email, first_name, last_name, password_hash,
			role_id, department_id, is_active, email_verified, is_deleted,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		strings.ToLower(user.Email),
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		nullableID(user.RoleID),
		nullableID(user.DepartmentID),
		user.IsActive,
		user.EmailVerified,
		user.IsDeleted,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	user.Email = strings.ToLower(user.Email)
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByLogin retrieves a user by username or case-insensitive e-mail
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx,
		userSelect+` WHERE u.username = ? OR u.email = ? ORDER BY u.id LIMIT 1`,
		login, strings.ToLower(login)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}
	return user, nil
}

// FindActiveByRole returns eligible holders of role ordered by id
func (r *UserRepository) FindActiveByRole(ctx context.Context, role entity.RoleName, departmentID *int64) ([]*entity.User, error) {
	query := userSelect + ` WHERE r.name = ? AND u.is_active = ? AND u.is_deleted = ?`
	args := []interface{}{string(role), true, false}
	if departmentID != nil {
		query += ` AND u.department_id = ?`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY u.id`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to find users by role", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to find users by role: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
