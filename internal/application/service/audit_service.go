package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

const auditSheet = "Audit Log"

var auditExportHeader = []interface{}{
	"ID", "Action", "Entity Type", "Entity ID", "Performed By", "Performed At", "Previous Value", "New Value",
}

// AuditService appends and queries the compliance trail
type AuditService interface {
	Append(ctx context.Context, entry *entity.AuditLog) error
	// Record appends one history entry and one audit entry atomically
	Record(ctx context.Context, history *entity.RequestHistory, audit *entity.AuditLog) error
	Query(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error)
	History(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error)
	LatestHistory(ctx context.Context, requestID int64) (*entity.RequestHistory, error)
	// Export renders the audit entries of one entity as an XLSX workbook
	Export(ctx context.Context, entityType string, entityID int64) ([]byte, error)
}

type auditServiceImpl struct {
	auditRepo   port.AuditRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(
	auditRepo port.AuditRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
) AuditService {
	return &auditServiceImpl{
		auditRepo:   auditRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// Snapshot renders v as JSON for the previous/new value columns
func Snapshot(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Append inserts one audit entry
func (s *auditServiceImpl) Append(ctx context.Context, entry *entity.AuditLog) error {
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit log", "error", err, "action", entry.Action, "entity_id", entry.EntityID)
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// Record joins the caller's transaction when one is open
func (s *auditServiceImpl) Record(ctx context.Context, history *entity.RequestHistory, audit *entity.AuditLog) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.historyRepo.Append(txCtx, history); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if err := s.auditRepo.Append(txCtx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		return nil
	})
}

// Query returns the entity's audit entries in creation order
func (s *auditServiceImpl) Query(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error) {
	entries, err := s.auditRepo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, nil
}

// History returns the request's change log in creation order
func (s *auditServiceImpl) History(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	entries, err := s.historyRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// LatestHistory returns the newest history entry or nil
func (s *auditServiceImpl) LatestHistory(ctx context.Context, requestID int64) (*entity.RequestHistory, error) {
	entry, err := s.historyRepo.Latest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("latest history: %w", err)
	}
	return entry, nil
}

// Export writes a header row followed by one row per entry
func (s *auditServiceImpl) Export(ctx context.Context, entityType string, entityID int64) ([]byte, error) {
	entries, err := s.Query(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(auditSheet, "A1", &auditExportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		row := []interface{}{
			entry.ID,
			entry.Action,
			entry.EntityType,
			entry.EntityID,
			strconv.FormatInt(entry.PerformedBy, 10),
			entry.PerformedAt.Format("2006-01-02 15:04:05"),
			entry.PreviousValue,
			entry.NewValue,
		}
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("Audit log exported", "entity_type", entityType, "entity_id", entityID, "rows", len(entries))
	return buf.Bytes(), nil
}
