// Package seed loads reference data (roles, branches, departments and
// bootstrap users) from YAML and writes whatever is missing.
package seed

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// Data is the seed file layout
type Data struct {
	Roles    []RoleSeed   `yaml:"roles"`
	Branches []BranchSeed `yaml:"branches"`
	Users    []UserSeed   `yaml:"users"`
}

// RoleSeed is one role and whether approver lookup is scoped to a department
type RoleSeed struct {
	Name             entity.RoleName `yaml:"name"`
	DepartmentScoped bool            `yaml:"department_scoped"`
}

// BranchSeed is a branch with its departments
type BranchSeed struct {
	Name        string   `yaml:"name"`
	Departments []string `yaml:"departments"`
}

// UserSeed is a bootstrap account. Password may reference an environment
// variable as ${NAME}.
type UserSeed struct {
	Username   string          `yaml:"username"`
	Email      string          `yaml:"email"`
	FirstName  string          `yaml:"first_name"`
	LastName   string          `yaml:"last_name"`
	Password   string          `yaml:"password"`
	Role       entity.RoleName `yaml:"role"`
	Branch     string          `yaml:"branch"`
	Department string          `yaml:"department"`
}

// Report counts the rows the seeder created
type Report struct {
	Roles       int
	Branches    int
	Departments int
	Users       int
}

// Load reads seed data from a YAML file
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes seed YAML
func Parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed data: %w", err)
	}
	for i, r := range data.Roles {
		if r.Name == "" {
			return nil, fmt.Errorf("roles[%d]: name is required", i)
		}
	}
	for i, b := range data.Branches {
		if b.Name == "" {
			return nil, fmt.Errorf("branches[%d]: name is required", i)
		}
	}
	return &data, nil
}

// Seeder writes seed data; running it twice changes nothing
type Seeder struct {
	roleRepo   port.RoleRepository
	branchRepo port.BranchRepository
	deptRepo   port.DepartmentRepository
	userRepo   port.UserRepository
	directory  service.DirectoryService
	txManager  port.TransactionManager
	logger     *zap.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(
	roleRepo port.RoleRepository,
	branchRepo port.BranchRepository,
	deptRepo port.DepartmentRepository,
	userRepo port.UserRepository,
	directory service.DirectoryService,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		roleRepo:   roleRepo,
		branchRepo: branchRepo,
		deptRepo:   deptRepo,
		userRepo:   userRepo,
		directory:  directory,
		txManager:  txManager,
		logger:     logger,
	}
}

// Apply writes roles, branches and departments in one transaction, then
// creates missing users through the directory so passwords are hashed and audited.
func (s *Seeder) Apply(ctx context.Context, data *Data) (*Report, error) {
	report := &Report{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.seedRoles(txCtx, data.Roles, report); err != nil {
			return err
		}
		return s.seedBranches(txCtx, data.Branches, report)
	})
	if err != nil {
		return nil, err
	}

	for _, u := range data.Users {
		created, err := s.seedUser(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		if created {
			report.Users++
		}
	}

	s.logger.Info("Seed data applied",
		zap.Int("roles", report.Roles),
		zap.Int("branches", report.Branches),
		zap.Int("departments", report.Departments),
		zap.Int("users", report.Users))
	return report, nil
}

func (s *Seeder) seedRoles(ctx context.Context, roles []RoleSeed, report *Report) error {
	for _, r := range roles {
		existing, err := s.roleRepo.GetByName(ctx, r.Name)
		if err != nil {
			return fmt.Errorf("get role %s: %w", r.Name, err)
		}
		if existing != nil && existing.DepartmentScoped == r.DepartmentScoped {
			continue
		}
		if err := s.roleRepo.Upsert(ctx, &entity.Role{Name: r.Name, DepartmentScoped: r.DepartmentScoped}); err != nil {
			return err
		}
		if existing == nil {
			report.Roles++
		}
	}
	return nil
}

func (s *Seeder) seedBranches(ctx context.Context, branches []BranchSeed, report *Report) error {
	for _, b := range branches {
		branch, err := s.branchRepo.GetByName(ctx, b.Name)
		if err != nil {
			return fmt.Errorf("get branch %s: %w", b.Name, err)
		}
		if branch == nil {
			branch = &entity.Branch{Name: b.Name}
			if err := s.branchRepo.Create(ctx, branch); err != nil {
				return fmt.Errorf("create branch %s: %w", b.Name, err)
			}
			report.Branches++
		}

		for _, name := range b.Departments {
			dept, err := s.deptRepo.GetByName(ctx, branch.ID, name)
			if err != nil {
				return fmt.Errorf("get department %s: %w", name, err)
			}
			if dept != nil {
				continue
			}
			if err := s.deptRepo.Create(ctx, &entity.Department{Name: name, BranchID: branch.ID}); err != nil {
				return fmt.Errorf("create department %s: %w", name, err)
			}
			report.Departments++
		}
	}
	return nil
}

func (s *Seeder) seedUser(ctx context.Context, u UserSeed) (bool, error) {
	existing, err := s.userRepo.GetByLogin(ctx, u.Username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	password := os.ExpandEnv(u.Password)
	if password == "" {
		s.logger.Warn("Skipping seed user without password", zap.String("username", u.Username))
		return false, nil
	}

	var departmentID *int64
	if u.Department != "" {
		branch, err := s.branchRepo.GetByName(ctx, u.Branch)
		if err != nil {
			return false, err
		}
		if branch == nil {
			return false, fmt.Errorf("unknown branch %q", u.Branch)
		}
		dept, err := s.deptRepo.GetByName(ctx, branch.ID, u.Department)
		if err != nil {
			return false, err
		}
		if dept == nil {
			return false, fmt.Errorf("unknown department %q in %s", u.Department, u.Branch)
		}
		departmentID = &dept.ID
	}

	_, err = s.directory.CreateUser(ctx, service.CreateUserInput{
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Password:     password,
		Role:         u.Role,
		DepartmentID: departmentID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
