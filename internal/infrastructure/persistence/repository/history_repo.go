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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new request history repository
func NewHistoryRepository(db *sqlstore.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

const historyColumns = `id, request_id, request_type, previous_status, new_status, action, actor_id, comment, created_at`

func scanHistory(row rowScanner) (*entity.RequestHistory, error) {
	var h entity.RequestHistory
	err := row.Scan(
		&h.ID, &h.RequestID, &h.RequestType, &h.PreviousStatus, &h.NewStatus,
		&h.Action, &h.ActorID, &h.Comment, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Append inserts a history entry
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.RequestHistory) error {
	entry.CreatedAt = nowIfZero(entry.CreatedAt)
	id, err := r.db.InsertReturningID(ctx, `
		INSERT INTO request_history (
			request_id, request_type, previous_status, new_status, action, actor_id, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		string(entry.RequestType),
		string(entry.PreviousStatus),
		string(entry.NewStatus),
		entry.Action,
		entry.ActorID,
		entry.Comment,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append request history", zap.Int64("request_id", entry.RequestID), zap.Error(err))
		return fmt.Errorf("failed to append request history: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByRequest returns a request's history in commit order
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+historyColumns+` FROM request_history WHERE request_id = ? ORDER BY id ASC`, requestID)
	if err != nil {
		r.logger.Error("Failed to list request history", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list request history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.RequestHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request history: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// Latest returns the most recent history entry of a request
func (r *HistoryRepository) Latest(ctx context.Context, requestID int64) (*entity.RequestHistory, error) {
	h, err := scanHistory(r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM request_history WHERE request_id = ? ORDER BY id DESC LIMIT 1`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest request history: %w", err)
	}
	return h, nil
}
