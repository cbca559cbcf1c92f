package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/application/workflow"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	domainwf "github.com/esunday5/staff-portal/internal/domain/workflow"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockDirectory struct {
	service.DirectoryService
	users       map[string]*entity.User
	createdWith *service.CreateUserInput
}

func (m *mockDirectory) Authenticate(ctx context.Context, login, password string) (*entity.User, error) {
	if user, ok := m.users[login]; ok && password == "secret" {
		return user, nil
	}
	return nil, apperror.Unauthenticated("invalid credentials")
}

func (m *mockDirectory) ListBranches(ctx context.Context) ([]*entity.Branch, error) {
	return []*entity.Branch{{ID: 1, Name: "HeadOffice Branch"}}, nil
}

func (m *mockDirectory) ListDepartments(ctx context.Context, branchID int64) ([]*entity.Department, error) {
	if branchID != 1 {
		return nil, apperror.NotFound("branch", branchID)
	}
	return []*entity.Department{{ID: 6, Name: "Fund transfer", BranchID: 1}}, nil
}

func (m *mockDirectory) CreateUser(ctx context.Context, input service.CreateUserInput) (*entity.User, error) {
	m.createdWith = &input
	return &entity.User{ID: 99, Username: input.Username, Email: input.Email}, nil
}

type mockRequests struct {
	service.RequestService
	create      func(ctx context.Context, actor *entity.User, input service.CreateRequestInput) (*service.CreateResult, error)
	get         func(ctx context.Context, id int64) (*entity.Request, error)
	listPending func(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error)
	reviewQueue func(ctx context.Context, actor *entity.User) ([]*entity.Request, error)
}

func (m *mockRequests) Create(ctx context.Context, actor *entity.User, input service.CreateRequestInput) (*service.CreateResult, error) {
	return m.create(ctx, actor, input)
}

func (m *mockRequests) Get(ctx context.Context, id int64) (*entity.Request, error) {
	return m.get(ctx, id)
}

func (m *mockRequests) ListPending(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	return m.listPending(ctx, filter)
}

func (m *mockRequests) ListReviewQueue(ctx context.Context, actor *entity.User) ([]*entity.Request, error) {
	return m.reviewQueue(ctx, actor)
}

type mockEngine struct {
	workflow.Engine
	apply    func(ctx context.Context, input workflow.DecisionInput) (*workflow.DecisionResult, error)
	resubmit func(ctx context.Context, requestID int64, officer *entity.User, expectedVersion *int64) (*workflow.DecisionResult, error)
}

func (m *mockEngine) ApplyDecision(ctx context.Context, input workflow.DecisionInput) (*workflow.DecisionResult, error) {
	return m.apply(ctx, input)
}

func (m *mockEngine) Resubmit(ctx context.Context, requestID int64, officer *entity.User, expectedVersion *int64) (*workflow.DecisionResult, error) {
	return m.resubmit(ctx, requestID, officer, expectedVersion)
}

func (m *mockEngine) History(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	return []*entity.RequestHistory{{RequestID: requestID, NewStatus: domainwf.StatePending}}, nil
}

func (m *mockEngine) RequiredRole(rt entity.RequestType, state domainwf.State) (entity.RoleName, bool) {
	if state == domainwf.StatePending {
		return entity.RoleSupervisor, true
	}
	return "", false
}

func (m *mockEngine) AvailableDecisions(rt entity.RequestType, state domainwf.State) []domainwf.Trigger {
	if state == domainwf.StatePending {
		return []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject, domainwf.TriggerReturn}
	}
	return nil
}

type mockNotifications struct {
	service.NotificationService
	markRead func(ctx context.Context, userID, id int64) error
	updated  *entity.NotificationSettings
}

func (m *mockNotifications) List(ctx context.Context, userID int64, unreadOnly bool) ([]*entity.Notification, error) {
	items := []*entity.Notification{{ID: 1, UserID: userID, Message: "read", IsRead: true}, {ID: 2, UserID: userID, Message: "new"}}
	if unreadOnly {
		return items[1:], nil
	}
	return items, nil
}

func (m *mockNotifications) MarkRead(ctx context.Context, userID, id int64) error {
	return m.markRead(ctx, userID, id)
}

func (m *mockNotifications) GetSettings(ctx context.Context, userID int64) (*entity.NotificationSettings, error) {
	return entity.DefaultNotificationSettings(userID), nil
}

func (m *mockNotifications) UpdateSettings(ctx context.Context, settings *entity.NotificationSettings) error {
	m.updated = settings
	return nil
}

type mockAudit struct {
	service.AuditService
}

func (m *mockAudit) Query(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error) {
	return []*entity.AuditLog{{ID: 1, EntityType: entityType, EntityID: entityID, Action: entity.ActionUserCreated}}, nil
}

func (m *mockAudit) Export(ctx context.Context, entityType string, entityID int64) ([]byte, error) {
	return []byte("PK-xlsx"), nil
}

var (
	departmentID = int64(10)
	officer      = &entity.User{ID: 1, Username: "officer", RoleName: entity.RoleOfficer, DepartmentScoped: true, DepartmentID: &departmentID, IsActive: true}
	other        = &entity.User{ID: 2, Username: "other", RoleName: entity.RoleOfficer, DepartmentScoped: true, DepartmentID: &departmentID, IsActive: true}
	supervisor   = &entity.User{ID: 3, Username: "supervisor", RoleName: entity.RoleSupervisor, DepartmentScoped: true, DepartmentID: &departmentID, IsActive: true}
	reviewer     = &entity.User{ID: 4, Username: "reviewer", RoleName: entity.RoleReviewer, IsActive: true}
	admin        = &entity.User{ID: 5, Username: "admin", RoleName: entity.RoleSuperAdmin, IsActive: true}
)

type testEnv struct {
	server        *Server
	logger        *mockLogger
	directory     *mockDirectory
	requests      *mockRequests
	engine        *mockEngine
	notifications *mockNotifications
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		logger: &mockLogger{},
		directory: &mockDirectory{users: map[string]*entity.User{
			"officer": officer, "other": other, "supervisor": supervisor, "reviewer": reviewer, "admin": admin,
		}},
		requests: &mockRequests{
			get: func(ctx context.Context, id int64) (*entity.Request, error) {
				if id != 7 {
					return nil, apperror.NotFound("request", id)
				}
				return &entity.Request{ID: 7, OfficerID: officer.ID, Type: entity.RequestTypeCashAdvance, Status: domainwf.StatePending, Version: 1}, nil
			},
		},
		engine:        &mockEngine{},
		notifications: &mockNotifications{},
	}

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	env.server = NewServer(cfg, Services{
		Directory:     env.directory,
		Requests:      env.requests,
		Notifications: env.notifications,
		Audit:         &mockAudit{},
		Workflow:      env.engine,
		Health: func(ctx context.Context) (bool, interface{}) {
			return true, map[string]string{"database": "ok"}
		},
	}, env.logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, login string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if login != "" {
		req.SetBasicAuth(login, "secret")
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.Validation(apperror.FieldError{Field: "amount"}), http.StatusBadRequest},
		{apperror.Unauthorized("nope"), http.StatusForbidden},
		{apperror.Unauthenticated("who"), http.StatusUnauthorized},
		{apperror.NotFound("request", 1), http.StatusNotFound},
		{apperror.StaleState(1), http.StatusConflict},
		{apperror.NoApproverConfigured("Supervisor", 1), http.StatusUnprocessableEntity},
		{apperror.TransitionFailed(1, errors.New("disk full")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestHealthAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, resp = env.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "officer", Password: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "officer", resp.Data.(map[string]interface{})["username"])
	assert.NotContains(t, w.Body.String(), "password")

	w, resp = env.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "officer", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.KindUnauthenticated, resp.Code)
}

func TestBasicAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/branches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	w, _ = env.do(t, http.MethodGet, "/branches", "officer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateRequest_JSON(t *testing.T) {
	env := newTestEnv(t)
	var got service.CreateRequestInput
	env.requests.create = func(ctx context.Context, actor *entity.User, input service.CreateRequestInput) (*service.CreateResult, error) {
		got = input
		assert.Equal(t, officer.ID, actor.ID)
		return &service.CreateResult{Request: &entity.Request{ID: 11, Status: domainwf.StatePending}}, nil
	}

	body := map[string]interface{}{
		"branch":      1,
		"department":  10,
		"description": "A4 paper",
		"quantity":    2,
		"items":       []map[string]interface{}{{"description": "A4 paper", "quantity": 2, "unit_price": "2500"}},
	}
	w, resp := env.do(t, http.MethodPost, "/stationery_request", "officer", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Warning)

	assert.Equal(t, entity.RequestTypeStationery, got.Type)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.NewFromInt(2500).Equal(got.Items[0].UnitPrice))
}

func TestCreateRequest_Multipart(t *testing.T) {
	env := newTestEnv(t)
	var got service.CreateRequestInput
	env.requests.create = func(ctx context.Context, actor *entity.User, input service.CreateRequestInput) (*service.CreateResult, error) {
		got = input
		return &service.CreateResult{
			Request: &entity.Request{ID: 12},
			Routing: apperror.NoApproverConfigured("Supervisor", 10),
		}, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("data", `{"branch":1,"department":10,"name":"Ada Obi","amount":"1500"}`))
	fw, err := mw.CreateFormFile("receipt", "receipt.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/petty_cash_retirement", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("officer", "secret")
	w, resp := env.serve(t, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, resp.Warning, "no active Supervisor")
	assert.Equal(t, entity.RequestTypePettyCashRetirement, got.Type)
	assert.Equal(t, "Ada Obi", got.PayeeName)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, entity.DocumentReceipt, got.Documents[0].Kind)
	assert.Equal(t, "receipt.pdf", got.Documents[0].FileName)
	assert.Equal(t, []byte("%PDF-1.4"), got.Documents[0].Content)
}

func TestCreateRequest_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	env.requests.create = func(ctx context.Context, actor *entity.User, input service.CreateRequestInput) (*service.CreateResult, error) {
		return nil, apperror.Validation(
			apperror.FieldError{Field: "amount", Message: "is required"},
			apperror.FieldError{Field: "receipt", Message: "is required"},
		)
	}

	w, resp := env.do(t, http.MethodPost, "/opex_capex_retirement", "officer", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.KindValidation, resp.Code)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "receipt", resp.Fields[1].Field)

	w, resp = env.do(t, http.MethodPost, "/cash_advance", "officer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body", resp.Fields[0].Field)
}

func TestReviewRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		err        error
		wantStatus int
		wantCode   apperror.Kind
	}{
		{name: "approved", body: ReviewRequest{Status: "Approved"}, wantStatus: http.StatusOK},
		{name: "unknown status", body: ReviewRequest{Status: "Maybe"}, wantStatus: http.StatusBadRequest, wantCode: apperror.KindValidation},
		{name: "stale", body: ReviewRequest{Status: "Approved"}, err: apperror.StaleState(7), wantStatus: http.StatusConflict, wantCode: apperror.KindStaleState},
		{name: "routing gap", body: ReviewRequest{Status: "Approved"}, err: apperror.NoApproverConfigured("Reviewer", 0), wantStatus: http.StatusUnprocessableEntity, wantCode: apperror.KindNoApproverConfigured},
		{name: "rolled back", body: ReviewRequest{Status: "Returned"}, err: apperror.TransitionFailed(7, errors.New("locked")), wantStatus: http.StatusServiceUnavailable, wantCode: apperror.KindTransitionFailed},
		{name: "wrong role", body: ReviewRequest{Status: "Rejected"}, err: apperror.Unauthorized("no"), wantStatus: http.StatusForbidden, wantCode: apperror.KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			var got workflow.DecisionInput
			env.engine.apply = func(ctx context.Context, input workflow.DecisionInput) (*workflow.DecisionResult, error) {
				got = input
				if tt.err != nil {
					return nil, tt.err
				}
				return &workflow.DecisionResult{State: domainwf.StateAuthorizedBySupervisor}, nil
			}

			w, resp := env.do(t, http.MethodPut, "/review_requests/7", "supervisor", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, int64(7), got.RequestID)
				assert.Equal(t, domainwf.TriggerApprove, got.Decision)
				assert.Equal(t, supervisor.ID, got.Actor.ID)
			}
		})
	}
}

func TestReviewRequest_PassesVersion(t *testing.T) {
	env := newTestEnv(t)
	var got workflow.DecisionInput
	env.engine.apply = func(ctx context.Context, input workflow.DecisionInput) (*workflow.DecisionResult, error) {
		got = input
		return &workflow.DecisionResult{}, nil
	}

	version := int64(3)
	w, _ := env.do(t, http.MethodPut, "/review_requests/7", "supervisor", ReviewRequest{Status: "Returned", Reason: "missing invoice", Version: &version})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.ExpectedVersion)
	assert.Equal(t, int64(3), *got.ExpectedVersion)
	assert.Equal(t, "missing invoice", got.Reason)
	assert.Equal(t, domainwf.TriggerReturn, got.Decision)

	w, _ = env.do(t, http.MethodPut, "/review_requests/abc", "supervisor", ReviewRequest{Status: "Approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRequest(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/requests/7", "officer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(7), data["id"])
	assert.Equal(t, "Supervisor", data["required_role"])
	assert.Len(t, data["decisions"], 3)

	w, resp = env.do(t, http.MethodGet, "/requests/7", "other", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.KindUnauthorized, resp.Code)

	w, _ = env.do(t, http.MethodGet, "/requests/8", "supervisor", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodGet, "/requests/7/history", "reviewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)
}

func TestListRequests_Scoping(t *testing.T) {
	env := newTestEnv(t)
	var got port.RequestFilter
	env.requests.listPending = func(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
		got = filter
		return nil, nil
	}

	w, _ := env.do(t, http.MethodGet, "/requests", "officer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.OfficerID)
	assert.Equal(t, officer.ID, *got.OfficerID)
	assert.Equal(t, domainwf.AllStates(), got.Statuses)

	w, _ = env.do(t, http.MethodGet, "/requests?status=PENDING&type=cash_advance", "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, got.OfficerID)
	require.NotNil(t, got.DepartmentID)
	assert.Equal(t, departmentID, *got.DepartmentID)
	assert.Equal(t, []domainwf.State{domainwf.StatePending}, got.Statuses)
	assert.Equal(t, entity.RequestTypeCashAdvance, got.Type)

	w, _ = env.do(t, http.MethodGet, "/requests?status=LOST", "reviewer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewQueueAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	env.requests.reviewQueue = func(ctx context.Context, actor *entity.User) ([]*entity.Request, error) {
		return []*entity.Request{{ID: 7, Status: domainwf.StatePending}}, nil
	}
	env.engine.resubmit = func(ctx context.Context, requestID int64, o *entity.User, expectedVersion *int64) (*workflow.DecisionResult, error) {
		assert.Nil(t, expectedVersion)
		return &workflow.DecisionResult{PreviousState: domainwf.StateReturnedToOfficer, State: domainwf.StatePending}, nil
	}

	w, resp := env.do(t, http.MethodGet, "/review_requests", "supervisor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = env.do(t, http.MethodPost, "/requests/7/resubmit", "officer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.notifications.markRead = func(ctx context.Context, userID, id int64) error {
		if id != 2 || userID != officer.ID {
			return apperror.NotFound("notification", id)
		}
		return nil
	}

	w, resp := env.do(t, http.MethodGet, "/notifications?unread=true", "officer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = env.do(t, http.MethodPut, "/notifications/2/read", "officer", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPut, "/notifications/2/read", "supervisor", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = env.do(t, http.MethodGet, "/notification_settings", "officer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["email_enabled"])

	w, _ = env.do(t, http.MethodPut, "/notification_settings", "officer", SettingsRequest{EmailEnabled: false, PushEnabled: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.notifications.updated)
	assert.Equal(t, officer.ID, env.notifications.updated.UserID)
	assert.True(t, env.notifications.updated.PushEnabled)
	assert.False(t, env.notifications.updated.EmailEnabled)
}

func TestAuditLogs(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/audit_logs?entity_type=request&entity_id=7", "officer", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := env.do(t, http.MethodGet, "/audit_logs?entity_type=request&entity_id=7", "reviewer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = env.do(t, http.MethodGet, "/audit_logs?entity_type=request", "reviewer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "entity_id", resp.Fields[0].Field)

	w, _ = env.do(t, http.MethodGet, "/audit_logs/export?entity_type=request&entity_id=7", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_request_7.xlsx")
	assert.Equal(t, "PK-xlsx", w.Body.String())
}

func TestDirectoryRoutes(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/branches/1/departments", "officer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = env.do(t, http.MethodGet, "/branches/2/departments", "officer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	input := service.CreateUserInput{Username: "new", Email: "new@example.com", Password: "password1", Role: entity.RoleReviewer}
	w, _ = env.do(t, http.MethodPost, "/users", "officer", input)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, env.directory.createdWith)

	w, _ = env.do(t, http.MethodPost, "/users", "admin", input)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, env.directory.createdWith)
	assert.Equal(t, admin.ID, env.directory.createdWith.ActorID)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	env := newTestEnv(t)
	env.requests.reviewQueue = func(ctx context.Context, actor *entity.User) ([]*entity.Request, error) {
		return nil, errors.New("sql: database is closed")
	}

	w, resp := env.do(t, http.MethodGet, "/review_requests", "reviewer", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, w.Body.String(), "database is closed")
	assert.Contains(t, env.logger.errors, "Request failed")
}
