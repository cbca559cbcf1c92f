package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/workflow"
)

func TestAuditService_RecordWritesBothLogs(t *testing.T) {
	history := &mockHistoryRepo{}
	audit := &mockAuditRepo{}
	tx := &mockTxManager{}
	svc := NewAuditService(audit, history, tx, &mockLogger{})

	err := svc.Record(context.Background(),
		&entity.RequestHistory{RequestID: 1, NewStatus: workflow.StatePending, Action: entity.ActionCreate, ActorID: 1},
		&entity.AuditLog{Action: entity.ActionCreate, EntityType: entity.EntityTypeRequest, EntityID: 1, PerformedBy: 1},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
	assert.Len(t, history.entries, 1)
	assert.Len(t, audit.entries, 1)

	latest, err := svc.LatestHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionCreate, latest.Action)
}

func TestAuditService_RecordPropagatesFailure(t *testing.T) {
	audit := &mockAuditRepo{err: errors.New("constraint")}
	svc := NewAuditService(audit, &mockHistoryRepo{}, &mockTxManager{}, &mockLogger{})

	err := svc.Record(context.Background(), &entity.RequestHistory{RequestID: 1}, &entity.AuditLog{EntityID: 1})
	assert.ErrorContains(t, err, "append audit")
}

func TestAuditService_Export(t *testing.T) {
	audit := &mockAuditRepo{}
	svc := NewAuditService(audit, &mockHistoryRepo{}, &mockTxManager{}, &mockLogger{})
	ctx := context.Background()

	require.NoError(t, svc.Append(ctx, &entity.AuditLog{
		Action:      entity.ActionCreate,
		EntityType:  entity.EntityTypeRequest,
		EntityID:    9,
		PerformedBy: 3,
		NewValue:    Snapshot(map[string]string{"status": "PENDING"}),
		PerformedAt: testNow,
	}))
	require.NoError(t, svc.Append(ctx, &entity.AuditLog{
		Action:        entity.ActionStatusChange,
		EntityType:    entity.EntityTypeRequest,
		EntityID:      9,
		PerformedBy:   4,
		PreviousValue: `{"status":"PENDING"}`,
		NewValue:      `{"status":"AUTHORIZED_BY_SUPERVISOR"}`,
		PerformedAt:   testNow,
	}))
	require.NoError(t, svc.Append(ctx, &entity.AuditLog{Action: entity.ActionCreate, EntityType: entity.EntityTypeRequest, EntityID: 10}))

	data, err := svc.Export(ctx, entity.EntityTypeRequest, 9)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Audit Log")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Action", rows[0][1])
	assert.Equal(t, entity.ActionCreate, rows[1][1])
	assert.Equal(t, "3", rows[1][4])
	assert.Equal(t, "2026-03-02 09:00:00", rows[1][5])
	assert.Equal(t, `{"status":"PENDING"}`, rows[1][7])
	assert.Equal(t, entity.ActionStatusChange, rows[2][1])
	assert.Equal(t, `{"status":"PENDING"}`, rows[2][6])
}

func TestSnapshot(t *testing.T) {
	assert.Equal(t, `{"a":1}`, Snapshot(map[string]int{"a": 1}))
	assert.Empty(t, Snapshot(nil))
}
