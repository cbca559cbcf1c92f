package service

import (
	"context"
	"sync"
	"time"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockRoleRepo struct {
	roles map[entity.RoleName]*entity.Role
}

func (m *mockRoleRepo) GetByName(ctx context.Context, name entity.RoleName) (*entity.Role, error) {
	return m.roles[name], nil
}

func (m *mockRoleRepo) List(ctx context.Context) ([]*entity.Role, error) {
	var out []*entity.Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRoleRepo) Upsert(ctx context.Context, role *entity.Role) error {
	m.roles[role.Name] = role
	return nil
}

func defaultRoles() *mockRoleRepo {
	return &mockRoleRepo{roles: map[entity.RoleName]*entity.Role{
		entity.RoleOfficer:    {ID: 1, Name: entity.RoleOfficer, DepartmentScoped: true},
		entity.RoleSupervisor: {ID: 2, Name: entity.RoleSupervisor, DepartmentScoped: true},
		entity.RoleReviewer:   {ID: 3, Name: entity.RoleReviewer},
		entity.RoleApprover:   {ID: 4, Name: entity.RoleApprover},
	}}
}

type mockBranchRepo struct {
	branches map[int64]*entity.Branch
}

func (m *mockBranchRepo) Create(ctx context.Context, branch *entity.Branch) error { return nil }

func (m *mockBranchRepo) GetByID(ctx context.Context, id int64) (*entity.Branch, error) {
	return m.branches[id], nil
}

func (m *mockBranchRepo) GetByName(ctx context.Context, name string) (*entity.Branch, error) {
	for _, b := range m.branches {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, nil
}

func (m *mockBranchRepo) List(ctx context.Context) ([]*entity.Branch, error) {
	var out []*entity.Branch
	for _, b := range m.branches {
		out = append(out, b)
	}
	return out, nil
}

type mockDeptRepo struct {
	departments map[int64]*entity.Department
}

func (m *mockDeptRepo) Create(ctx context.Context, dept *entity.Department) error { return nil }

func (m *mockDeptRepo) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	return m.departments[id], nil
}

func (m *mockDeptRepo) GetByName(ctx context.Context, branchID int64, name string) (*entity.Department, error) {
	for _, d := range m.departments {
		if d.BranchID == branchID && d.Name == name {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDeptRepo) FirstByName(ctx context.Context, name string) (*entity.Department, error) {
	var first *entity.Department
	for _, d := range m.departments {
		if d.Name == name && (first == nil || d.ID < first.ID) {
			first = d
		}
	}
	return first, nil
}

func (m *mockDeptRepo) ListByBranch(ctx context.Context, branchID int64) ([]*entity.Department, error) {
	var out []*entity.Department
	for _, d := range m.departments {
		if d.BranchID == branchID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockUserRepo struct {
	createFunc           func(ctx context.Context, user *entity.User) error
	getByIDFunc          func(ctx context.Context, id int64) (*entity.User, error)
	getByLoginFunc       func(ctx context.Context, login string) (*entity.User, error)
	findActiveByRoleFunc func(ctx context.Context, role entity.RoleName, departmentID *int64) ([]*entity.User, error)

	findCalls int
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = 100
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	if m.getByLoginFunc != nil {
		return m.getByLoginFunc(ctx, login)
	}
	return nil, nil
}

func (m *mockUserRepo) FindActiveByRole(ctx context.Context, role entity.RoleName, departmentID *int64) ([]*entity.User, error) {
	m.findCalls++
	if m.findActiveByRoleFunc != nil {
		return m.findActiveByRoleFunc(ctx, role, departmentID)
	}
	return nil, nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditLog
	err     error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error) {
	var out []*entity.AuditLog
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockHistoryRepo struct {
	entries []*entity.RequestHistory
}

func (m *mockHistoryRepo) Append(ctx context.Context, entry *entity.RequestHistory) error {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistoryRepo) ListByRequest(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	var out []*entity.RequestHistory
	for _, e := range m.entries {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) Latest(ctx context.Context, requestID int64) (*entity.RequestHistory, error) {
	var latest *entity.RequestHistory
	for _, e := range m.entries {
		if e.RequestID == requestID {
			latest = e
		}
	}
	return latest, nil
}

type mockNotificationRepo struct {
	created  []*entity.Notification
	markRead func(ctx context.Context, userID, id int64) (bool, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range m.created {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	if m.markRead != nil {
		return m.markRead(ctx, userID, id)
	}
	return false, nil
}

type mockSettingsRepo struct {
	settings map[int64]*entity.NotificationSettings
}

func (m *mockSettingsRepo) Get(ctx context.Context, userID int64) (*entity.NotificationSettings, error) {
	return m.settings[userID], nil
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, settings *entity.NotificationSettings) error {
	if m.settings == nil {
		m.settings = make(map[int64]*entity.NotificationSettings)
	}
	m.settings[settings.UserID] = settings
	return nil
}

type mockOutboxRepo struct {
	queued []*entity.OutboxMessage
}

func (m *mockOutboxRepo) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	msg.ID = int64(len(m.queued) + 1)
	m.queued = append(m.queued, msg)
	return nil
}

func (m *mockOutboxRepo) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	return m.queued, nil
}

func (m *mockOutboxRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error { return nil }

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error {
	return nil
}

func (m *mockOutboxRepo) ListByUser(ctx context.Context, userID int64) ([]*entity.OutboxMessage, error) {
	var out []*entity.OutboxMessage
	for _, msg := range m.queued {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type mockCache struct {
	entries map[string]int64
	getErr  error
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]int64)}
}

func (m *mockCache) Get(ctx context.Context, key string) (int64, bool, error) {
	if m.getErr != nil {
		return 0, false, m.getErr
	}
	id, ok := m.entries[key]
	return id, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key string, userID int64, ttl time.Duration) error {
	m.sets++
	m.entries[key] = userID
	return nil
}

type mockSender struct {
	channel entity.Channel
}

func (m *mockSender) Channel() entity.Channel { return m.channel }

func (m *mockSender) Send(ctx context.Context, msg *entity.OutboxMessage) error { return nil }

type mockStorage struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{saved: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return m.saved[path], nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.saved[path]
	return ok, nil
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	delete(m.saved, path)
	m.deleted = append(m.deleted, path)
	return nil
}

var (
	_ port.RoleRepository         = (*mockRoleRepo)(nil)
	_ port.BranchRepository       = (*mockBranchRepo)(nil)
	_ port.DepartmentRepository   = (*mockDeptRepo)(nil)
	_ port.UserRepository         = (*mockUserRepo)(nil)
	_ port.AuditRepository        = (*mockAuditRepo)(nil)
	_ port.HistoryRepository      = (*mockHistoryRepo)(nil)
	_ port.NotificationRepository = (*mockNotificationRepo)(nil)
	_ port.SettingsRepository     = (*mockSettingsRepo)(nil)
	_ port.OutboxRepository       = (*mockOutboxRepo)(nil)
	_ port.ApproverCache          = (*mockCache)(nil)
	_ port.DocumentStorage        = (*mockStorage)(nil)
	_ port.TransactionManager     = (*mockTxManager)(nil)
)
