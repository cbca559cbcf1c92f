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

// RequestRepository implements port.RequestRepository over the common requests table
// and one detail table per request type
type RequestRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlstore.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `
	id, request_type, officer_id, branch_id, department_id, amount, description,
	status, version, resubmission_count, rejection_reason, created_at, updated_at
`

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	err := row.Scan(
		&req.ID,
		&req.Type,
		&req.OfficerID,
		&req.BranchID,
		&req.DepartmentID,
		&req.Amount,
		&req.Description,
		&req.Status,
		&req.Version,
		&req.ResubmissionCount,
		&req.RejectionReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Create inserts the request with its details, items and documents in one transaction
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	req.CreatedAt = nowIfZero(req.CreatedAt)
	req.UpdatedAt = req.CreatedAt
	if req.Version == 0 {
		req.Version = 1
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		id, err := r.db.InsertReturningID(ctx, `
			INSERT INTO requests (
				request_type, officer_id, branch_id, department_id, amount, description,
				status, version, resubmission_count, rejection_reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(req.Type),
			req.OfficerID,
			req.BranchID,
			req.DepartmentID,
			req.Amount,
			req.Description,
			string(req.Status),
			req.Version,
			req.ResubmissionCount,
			req.RejectionReason,
			req.CreatedAt,
			req.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create request", zap.String("type", string(req.Type)), zap.Error(err))
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.ID = id

		if err := r.insertDetails(ctx, req); err != nil {
			return err
		}

		for i := range req.Items {
			item := &req.Items[i]
			item.RequestID = id
			item.Position = i + 1
			itemID, err := r.db.InsertReturningID(ctx, `
				INSERT INTO request_line_items (request_id, position, description, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?)`,
				id, item.Position, item.Description, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				return fmt.Errorf("failed to create line item: %w", err)
			}
			item.ID = itemID
		}

		for i := range req.Documents {
			doc := &req.Documents[i]
			doc.RequestID = id
			doc.CreatedAt = nowIfZero(doc.CreatedAt)
			docID, err := r.db.InsertReturningID(ctx, `
				INSERT INTO request_documents (request_id, kind, path, original_name, content_type, size, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, string(doc.Kind), doc.Path, doc.OriginalName, doc.ContentType, doc.Size, doc.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create document: %w", err)
			}
			doc.ID = docID
		}
		return nil
	})
}

func (r *RequestRepository) insertDetails(ctx context.Context, req *entity.Request) error {
	d := req.Details
	var query string
	var args []interface{}

	switch req.Type {
	case entity.RequestTypeCashAdvance:
		query = `INSERT INTO cash_advances (request_id, payee_name, account_number, invoice_amount, cash_advance, narration, less_what)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		args = []interface{}{req.ID, d.PayeeName, d.AccountNumber, d.InvoiceAmount, d.CashAdvance, d.Narration, d.LessWhat}
	case entity.RequestTypeOpexCapexRetirement:
		query = `INSERT INTO opex_capex_retirements (request_id, payee_name, account_number, invoice_amount, cash_advance, narration, refund_reimbursement, less_what)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		args = []interface{}{req.ID, d.PayeeName, d.AccountNumber, d.InvoiceAmount, d.CashAdvance, d.Narration, d.RefundReimbursement, d.LessWhat}
	case entity.RequestTypePettyCashAdvance:
		query = `INSERT INTO petty_cash_advances (request_id, payee_name, account_number) VALUES (?, ?, ?)`
		args = []interface{}{req.ID, d.PayeeName, d.AccountNumber}
	case entity.RequestTypePettyCashRetirement:
		query = `INSERT INTO petty_cash_retirements (request_id, payee_name, account_number, retired_amount) VALUES (?, ?, ?, ?)`
		args = []interface{}{req.ID, d.PayeeName, d.AccountNumber, d.RetiredAmount}
	case entity.RequestTypeStationery:
		query = `INSERT INTO stationery_requests (request_id, quantity) VALUES (?, ?)`
		args = []interface{}{req.ID, d.Quantity}
	default:
		return fmt.Errorf("unsupported request type: %s", req.Type)
	}

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create request details", zap.Int64("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create %s details: %w", req.Type, err)
	}
	return nil
}

// GetByID retrieves a request with details, items and documents
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := scanRequest(r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if err := r.loadChildren(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *RequestRepository) loadChildren(ctx context.Context, req *entity.Request) error {
	if err := r.loadDetails(ctx, req); err != nil {
		return err
	}
	if err := r.loadItems(ctx, req); err != nil {
		return err
	}
	return r.loadDocuments(ctx, req)
}

func (r *RequestRepository) loadItems(ctx context.Context, req *entity.Request) error {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, request_id, position, description, quantity, unit_price
		FROM request_line_items WHERE request_id = ? ORDER BY position`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.LineItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Position, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan line item: %w", err)
		}
		req.Items = append(req.Items, item)
	}
	return rows.Err()
}

func (r *RequestRepository) loadDocuments(ctx context.Context, req *entity.Request) error {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT id, request_id, kind, path, original_name, content_type, size, created_at
		FROM request_documents WHERE request_id = ? ORDER BY id`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc entity.Document
		if err := rows.Scan(&doc.ID, &doc.RequestID, &doc.Kind, &doc.Path, &doc.OriginalName, &doc.ContentType, &doc.Size, &doc.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		req.Documents = append(req.Documents, doc)
	}
	return rows.Err()
}

func (r *RequestRepository) loadDetails(ctx context.Context, req *entity.Request) error {
	d := &req.Details
	var query string
	var dest []interface{}

	switch req.Type {
	case entity.RequestTypeCashAdvance:
		query = `SELECT payee_name, account_number, invoice_amount, cash_advance, narration, less_what FROM cash_advances WHERE request_id = ?`
		dest = []interface{}{&d.PayeeName, &d.AccountNumber, &d.InvoiceAmount, &d.CashAdvance, &d.Narration, &d.LessWhat}
	case entity.RequestTypeOpexCapexRetirement:
		query = `SELECT payee_name, account_number, invoice_amount, cash_advance, narration, refund_reimbursement, less_what FROM opex_capex_retirements WHERE request_id = ?`
		dest = []interface{}{&d.PayeeName, &d.AccountNumber, &d.InvoiceAmount, &d.CashAdvance, &d.Narration, &d.RefundReimbursement, &d.LessWhat}
	case entity.RequestTypePettyCashAdvance:
		query = `SELECT payee_name, account_number FROM petty_cash_advances WHERE request_id = ?`
		dest = []interface{}{&d.PayeeName, &d.AccountNumber}
	case entity.RequestTypePettyCashRetirement:
		query = `SELECT payee_name, account_number, retired_amount FROM petty_cash_retirements WHERE request_id = ?`
		dest = []interface{}{&d.PayeeName, &d.AccountNumber, &d.RetiredAmount}
	case entity.RequestTypeStationery:
		query = `SELECT quantity FROM stationery_requests WHERE request_id = ?`
		dest = []interface{}{&d.Quantity}
	default:
		return fmt.Errorf("unsupported request type: %s", req.Type)
	}

	err := r.db.Conn(ctx).QueryRowContext(ctx, query, req.ID).Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to load %s details: %w", req.Type, err)
	}
	return nil
}

// List returns requests matching filter ordered by id, children included
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.DepartmentID != nil {
		where = append(where, "department_id = ?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.Type != "" {
		where = append(where, "request_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.OfficerID != nil {
		where = append(where, "officer_id = ?")
		args = append(args, *filter.OfficerID)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// children are loaded after the cursor is closed so a single-connection pool does not deadlock
	for _, req := range requests {
		if err := r.loadChildren(ctx, req); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

// UpdateStatus applies a guarded status change and bumps the version
func (r *RequestRepository) UpdateStatus(ctx context.Context, update port.StatusUpdate) (bool, error) {
	increment := 0
	if update.IncrementResubmission {
		increment = 1
	}

	result, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE requests
		SET status = ?, version = version + 1, rejection_reason = ?,
			resubmission_count = resubmission_count + ?, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		string(update.ToStatus),
		update.RejectionReason,
		increment,
		nowIfZero(update.UpdatedAt),
		update.RequestID,
		string(update.FromStatus),
		update.ExpectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.Int64("request_id", update.RequestID),
			zap.String("to", string(update.ToStatus)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}
