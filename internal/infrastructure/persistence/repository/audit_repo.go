package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/infrastructure/persistence/sqlstore"
)

// AuditRepository implements port.AuditRepository. It only ever inserts.
type AuditRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sqlstore.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append inserts an audit log entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditLog) error {
	entry.PerformedAt = nowIfZero(entry.PerformedAt)
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO audit_logs (
			action, entity_type, entity_id, performed_by, previous_value, new_value, performed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.PerformedBy,
		entry.PreviousValue,
		entry.NewValue,
		entry.PerformedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit log",
			zap.String("entity_type", entry.EntityType),
			zap.Int64("entity_id", entry.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByEntity returns an entity's audit entries in creation order
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditLog, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, action, entity_type, entity_id, performed_by, previous_value, new_value, performed_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id ASC`, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit logs", zap.String("entity_type", entityType), zap.Int64("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var l entity.AuditLog
		if err := rows.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.PerformedBy, &l.PreviousValue, &l.NewValue, &l.PerformedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
