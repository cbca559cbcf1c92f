package entity

import (
	"strings"
	"time"
)

// RoleName is the name of a staff role
type RoleName string

const (
	RoleOfficer    RoleName = "Officer"
	RoleSupervisor RoleName = "Supervisor"
	RoleReviewer   RoleName = "Reviewer"
	RoleApprover   RoleName = "Approver"
	RoleAdmin      RoleName = "Admin"
	RoleSuperAdmin RoleName = "Super Admin"
)

// String returns the string representation of the role name
func (r RoleName) String() string {
	return string(r)
}

// Role is static reference data; scoped roles only act inside their own department
type Role struct {
	ID               int64     `json:"id"`
	Name             RoleName  `json:"name"`
	DepartmentScoped bool      `json:"department_scoped"`
	CreatedAt        time.Time `json:"created_at"`
}

// Branch is a physical location of the organisation
type Branch struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Department belongs to a branch
type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BranchID  int64     `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a staff member. RoleName, DepartmentScoped and BranchID are joined in on read.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	PasswordHash     string    `json:"-"`
	RoleID           *int64    `json:"role_id,omitempty"`
	RoleName         RoleName  `json:"role,omitempty"`
	DepartmentScoped bool      `json:"department_scoped"`
	DepartmentID     *int64    `json:"department_id,omitempty"`
	BranchID         *int64    `json:"branch_id,omitempty"`
	IsActive         bool      `json:"is_active"`
	EmailVerified    bool      `json:"email_verified"`
	IsDeleted        bool      `json:"is_deleted"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FullName returns "First Last", falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsEligible reports whether the user may log in and be routed work
func (u *User) IsEligible() bool {
	return u.IsActive && !u.IsDeleted
}

// HasRole reports whether the user holds role
func (u *User) HasRole(role RoleName) bool {
	return u.RoleName == role
}

// InDepartment reports whether the user belongs to departmentID
func (u *User) InDepartment(departmentID int64) bool {
	return u.DepartmentID != nil && *u.DepartmentID == departmentID
}
