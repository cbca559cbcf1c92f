package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/workflow"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore/sqlstoretest"
)

type fixture struct {
	db          *sqlstore.DB
	roles       port.RoleRepository
	branches    port.BranchRepository
	departments port.DepartmentRepository
	users       port.UserRepository
	requests    port.RequestRepository
	workflows   port.WorkflowRepository
	history     port.HistoryRepository
	audit       port.AuditRepository

	branch  *entity.Branch
	finance *entity.Department
	hr      *entity.Department
	officer *entity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, _ := sqlstoretest.Open(t)
	logger := zap.NewNop()
	ctx := context.Background()

	f := &fixture{
		db:          db,
		roles:       NewRoleRepository(db, logger),
		branches:    NewBranchRepository(db, logger),
		departments: NewDepartmentRepository(db, logger),
		users:       NewUserRepository(db, logger),
		requests:    NewRequestRepository(db, logger),
		workflows:   NewWorkflowRepository(db, logger),
		history:     NewHistoryRepository(db, logger),
		audit:       NewAuditRepository(db, logger),
	}

	for _, role := range []*entity.Role{
		{Name: entity.RoleOfficer, DepartmentScoped: true},
		{Name: entity.RoleSupervisor, DepartmentScoped: true},
		{Name: entity.RoleReviewer, DepartmentScoped: false},
	} {
		require.NoError(t, f.roles.Upsert(ctx, role))
	}

	f.branch = &entity.Branch{Name: "Head Office"}
	require.NoError(t, f.branches.Create(ctx, f.branch))
	f.finance = &entity.Department{Name: "Finance", BranchID: f.branch.ID}
	require.NoError(t, f.departments.Create(ctx, f.finance))
	f.hr = &entity.Department{Name: "HR/Admin", BranchID: f.branch.ID}
	require.NoError(t, f.departments.Create(ctx, f.hr))

	f.officer = f.createUser(t, "officer", entity.RoleOfficer, &f.finance.ID)
	return f
}

func (f *fixture) createUser(t *testing.T, username string, role entity.RoleName, departmentID *int64) *entity.User {
	t.Helper()
	ctx := context.Background()
	r, err := f.roles.GetByName(ctx, role)
	require.NoError(t, err)
	require.NotNil(t, r)

	u := &entity.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		RoleID:       &r.ID,
		DepartmentID: departmentID,
		IsActive:     true,
	}
	require.NoError(t, f.users.Create(ctx, u))
	return u
}

func (f *fixture) newCashAdvance() *entity.Request {
	return &entity.Request{
		Type:         entity.RequestTypeCashAdvance,
		OfficerID:    f.officer.ID,
		BranchID:     f.branch.ID,
		DepartmentID: f.finance.ID,
		Amount:       decimal.NewFromInt(5000),
		Description:  "Conference travel",
		Status:       workflow.StatePending,
		Details: entity.RequestDetails{
			PayeeName:     "Jane Doe",
			AccountNumber: "0123456789",
			InvoiceAmount: decimal.NewFromInt(5000),
			CashAdvance:   decimal.NewFromInt(5000),
			Narration:     "Travel",
			LessWhat:      "None",
		},
		Documents: []entity.Document{
			{Kind: entity.DocumentManagementBoardApproval, Path: "management_board_approval/a.pdf", OriginalName: "a.pdf", Size: 10},
			{Kind: entity.DocumentProformaInvoice, Path: "proforma_invoice/b.pdf", OriginalName: "b.pdf", Size: 20},
		},
	}
}

func TestRoleRepository_UpsertUpdatesScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role := &entity.Role{Name: entity.RoleReviewer, DepartmentScoped: true}
	require.NoError(t, f.roles.Upsert(ctx, role))

	got, err := f.roles.GetByName(ctx, entity.RoleReviewer)
	require.NoError(t, err)
	assert.True(t, got.DepartmentScoped)
	assert.Equal(t, role.ID, got.ID)

	roles, err := f.roles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	missing, err := f.roles.GetByName(ctx, entity.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDepartmentRepository_Lookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.departments.GetByName(ctx, f.branch.ID, "Finance")
	require.NoError(t, err)
	assert.Equal(t, f.finance.ID, got.ID)

	first, err := f.departments.FirstByName(ctx, "HR/Admin")
	require.NoError(t, err)
	assert.Equal(t, f.hr.ID, first.ID)

	list, err := f.departments.ListByBranch(ctx, f.branch.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Finance", list[0].Name)

	dup := &entity.Department{Name: "Finance", BranchID: f.branch.ID}
	assert.Error(t, f.departments.Create(ctx, dup), "names are unique per branch")
}

func TestUserRepository_GetByLoginAndRoleJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byName, err := f.users.GetByLogin(ctx, "officer")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, entity.RoleOfficer, byName.RoleName)
	assert.True(t, byName.DepartmentScoped)
	require.NotNil(t, byName.BranchID)
	assert.Equal(t, f.branch.ID, *byName.BranchID)

	byEmail, err := f.users.GetByLogin(ctx, "OFFICER@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, f.officer.ID, byEmail.ID)

	none, err := f.users.GetByLogin(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUserRepository_FindActiveByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createUser(t, "sup1", entity.RoleSupervisor, &f.finance.ID)
	second := f.createUser(t, "sup2", entity.RoleSupervisor, &f.finance.ID)
	f.createUser(t, "sup-hr", entity.RoleSupervisor, &f.hr.ID)

	inactive := &entity.User{Username: "sup3", Email: "sup3@example.com", PasswordHash: "x", RoleID: first.RoleID, DepartmentID: &f.finance.ID}
	require.NoError(t, f.users.Create(ctx, inactive))

	users, err := f.users.FindActiveByRole(ctx, entity.RoleSupervisor, &f.finance.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, second.ID, users[1].ID)

	all, err := f.users.FindActiveByRole(ctx, entity.RoleSupervisor, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	reviewers, err := f.users.FindActiveByRole(ctx, entity.RoleReviewer, nil)
	require.NoError(t, err)
	assert.Empty(t, reviewers)
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.newCashAdvance()
	require.NoError(t, f.requests.Create(ctx, req))
	require.NotZero(t, req.ID)
	assert.Equal(t, int64(1), req.Version)

	got, err := f.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.RequestTypeCashAdvance, got.Type)
	assert.Equal(t, workflow.StatePending, got.Status)
	assert.True(t, decimal.NewFromInt(5000).Equal(got.Amount))
	assert.Equal(t, "Jane Doe", got.Details.PayeeName)
	assert.Equal(t, "None", got.Details.LessWhat)
	require.Len(t, got.Documents, 2)
	assert.True(t, got.HasDocument(entity.DocumentProformaInvoice))

	missing, err := f.requests.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequestRepository_StationeryLineItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := &entity.Request{
		Type:         entity.RequestTypeStationery,
		OfficerID:    f.officer.ID,
		BranchID:     f.branch.ID,
		DepartmentID: f.finance.ID,
		Amount:       decimal.RequireFromString("69.5"),
		Description:  "Office supplies",
		Status:       workflow.StatePending,
		Details:      entity.RequestDetails{Quantity: 12},
		Items: []entity.LineItem{
			{Description: "A4 paper", Quantity: 10, UnitPrice: decimal.RequireFromString("4.5")},
			{Description: "Stapler", Quantity: 2, UnitPrice: decimal.RequireFromString("12.25")},
		},
	}
	require.NoError(t, f.requests.Create(ctx, req))

	got, err := f.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[0].Position)
	assert.Equal(t, "Stapler", got.Items[1].Description)
	assert.True(t, decimal.RequireFromString("12.25").Equal(got.Items[1].UnitPrice))
	assert.Equal(t, 12, got.Details.Quantity)
	assert.True(t, got.Amount.Equal(entity.SumLineItems(got.Items)))
}

func TestRequestRepository_CreateRollsBackOnDetailFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.newCashAdvance()
	req.Type = entity.RequestType("loan")
	require.Error(t, f.requests.Create(ctx, req))

	all, err := f.requests.List(ctx, port.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRequestRepository_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.newCashAdvance()
	require.NoError(t, f.requests.Create(ctx, a))
	b := f.newCashAdvance()
	b.DepartmentID = f.hr.ID
	require.NoError(t, f.requests.Create(ctx, b))
	c := f.newCashAdvance()
	c.Status = workflow.StateRejected
	require.NoError(t, f.requests.Create(ctx, c))

	pending, err := f.requests.List(ctx, port.RequestFilter{Statuses: []workflow.State{workflow.StatePending}})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	financePending, err := f.requests.List(ctx, port.RequestFilter{
		Statuses:     []workflow.State{workflow.StatePending},
		DepartmentID: &f.finance.ID,
	})
	require.NoError(t, err)
	require.Len(t, financePending, 1)
	assert.Equal(t, a.ID, financePending[0].ID)
	assert.Len(t, financePending[0].Documents, 2)

	page, err := f.requests.List(ctx, port.RequestFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)
}

func TestRequestRepository_UpdateStatusIsConditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.newCashAdvance()
	require.NoError(t, f.requests.Create(ctx, req))

	update := port.StatusUpdate{
		RequestID:       req.ID,
		FromStatus:      workflow.StatePending,
		ToStatus:        workflow.StateReturnedToOfficer,
		ExpectedVersion: 1,
		RejectionReason: "missing invoice",
		UpdatedAt:       time.Now().UTC(),
	}
	ok, err := f.requests.UpdateStatus(ctx, update)
	require.NoError(t, err)
	assert.True(t, ok)

	// same pre-state again is stale
	ok, err = f.requests.UpdateStatus(ctx, update)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.requests.UpdateStatus(ctx, port.StatusUpdate{
		RequestID:             req.ID,
		FromStatus:            workflow.StateReturnedToOfficer,
		ToStatus:              workflow.StatePending,
		ExpectedVersion:       2,
		IncrementResubmission: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePending, got.Status)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, 1, got.ResubmissionCount)
}

func TestWorkflowRepository_CreateUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.newCashAdvance()
	require.NoError(t, f.requests.Create(ctx, req))

	wf := &entity.ExpenseApprovalWorkflow{RequestID: req.ID, Status: workflow.StatePending}
	wf.RecordActor(entity.RoleOfficer, f.officer.ID)
	require.NoError(t, f.workflows.Create(ctx, wf))

	sup := f.createUser(t, "sup", entity.RoleSupervisor, &f.finance.ID)
	wf.RecordActor(entity.RoleSupervisor, sup.ID)
	wf.Status = workflow.StateAuthorizedBySupervisor
	require.NoError(t, f.workflows.Update(ctx, wf))

	got, err := f.workflows.GetByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SupervisorID)
	assert.Equal(t, sup.ID, *got.SupervisorID)
	assert.Equal(t, f.officer.ID, *got.OfficerID)
	assert.Nil(t, got.ReviewerID)
	assert.Equal(t, workflow.StateAuthorizedBySupervisor, got.Status)
}

func TestHistoryAndAudit_OrderedAppendOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.newCashAdvance()
	require.NoError(t, f.requests.Create(ctx, req))

	steps := []struct {
		prev, next workflow.State
		action     string
	}{
		{"", workflow.StatePending, entity.ActionCreate},
		{workflow.StatePending, workflow.StateAuthorizedBySupervisor, string(workflow.TriggerApprove)},
		{workflow.StateAuthorizedBySupervisor, workflow.StateRejected, string(workflow.TriggerReject)},
	}
	for _, s := range steps {
		require.NoError(t, f.history.Append(ctx, &entity.RequestHistory{
			RequestID: req.ID, RequestType: req.Type, PreviousStatus: s.prev, NewStatus: s.next,
			Action: s.action, ActorID: f.officer.ID,
		}))
		require.NoError(t, f.audit.Append(ctx, &entity.AuditLog{
			Action: s.action, EntityType: entity.EntityTypeRequest, EntityID: req.ID, PerformedBy: f.officer.ID,
			PreviousValue: `{"status":"` + string(s.prev) + `"}`, NewValue: `{"status":"` + string(s.next) + `"}`,
		}))
	}

	entries, err := f.history.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, workflow.StateRejected, entries[2].NewStatus)

	latest, err := f.history.Latest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entries[2].ID, latest.ID)

	logs, err := f.audit.ListByEntity(ctx, entity.EntityTypeRequest, req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, entity.ActionCreate, logs[0].Action)

	_, err = f.db.Conn(ctx).ExecContext(ctx, `DELETE FROM audit_logs WHERE id = ?`, logs[0].ID)
	assert.Error(t, err, "audit_logs rejects deletes")
	_, err = f.db.Conn(ctx).ExecContext(ctx, `UPDATE audit_logs SET action = ? WHERE id = ?`, "X", logs[0].ID)
	assert.Error(t, err, "audit_logs rejects updates")
}

func TestTransaction_RollsBackEveryWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var reqID int64
	err := f.db.WithTransaction(ctx, func(ctx context.Context) error {
		req := f.newCashAdvance()
		if err := f.requests.Create(ctx, req); err != nil {
			return err
		}
		reqID = req.ID
		if err := f.history.Append(ctx, &entity.RequestHistory{
			RequestID: req.ID, RequestType: req.Type, NewStatus: workflow.StatePending,
			Action: entity.ActionCreate, ActorID: f.officer.ID,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := f.requests.GetByID(ctx, reqID)
	require.NoError(t, err)
	assert.Nil(t, got)

	entries, err := f.history.ListByRequest(ctx, reqID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
