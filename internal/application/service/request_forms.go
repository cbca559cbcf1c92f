package service

import (
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

// AllowedDocumentExtensions lists the upload types accepted for request documents
var AllowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// LineItemInput is one submitted item row
type LineItemInput struct {
	Description string          `json:"description" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required,gt=0"`
}

// DocumentUpload is an uploaded file waiting to be stored
type DocumentUpload struct {
	Kind        entity.DocumentKind
	FileName    string
	ContentType string
	Content     []byte
}

// CreateRequestInput is the union of the five request forms; each type reads its own fields
type CreateRequestInput struct {
	Type                entity.RequestType `json:"request_type"`
	BranchID            int64              `json:"branch"`
	DepartmentID        int64              `json:"department"`
	PayeeName           string             `json:"name"`
	AccountNumber       string             `json:"account"`
	InvoiceAmount       decimal.Decimal    `json:"invoice_amount"`
	CashAdvance         decimal.Decimal    `json:"cash_advance"`
	RetiredAmount       decimal.Decimal    `json:"retired_amount"`
	Amount              decimal.Decimal    `json:"amount"`
	Narration           string             `json:"narration"`
	LessWhat            string             `json:"less_what"`
	RefundReimbursement string             `json:"refund_reimbursement"`
	Description         string             `json:"description"`
	Quantity            int                `json:"quantity"`
	Items               []LineItemInput    `json:"items"`
	Documents           []DocumentUpload   `json:"-"`
}

type cashAdvanceForm struct {
	BranchID      int64           `json:"branch" validate:"required"`
	DepartmentID  int64           `json:"department" validate:"required"`
	PayeeName     string          `json:"name" validate:"required"`
	AccountNumber string          `json:"account" validate:"required"`
	InvoiceAmount decimal.Decimal `json:"invoice_amount" validate:"required,gt=0"`
	CashAdvance   decimal.Decimal `json:"cash_advance" validate:"required,gt=0"`
	Narration     string          `json:"narration" validate:"required"`
	LessWhat      string          `json:"less_what" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type opexCapexRetirementForm struct {
	BranchID            int64           `json:"branch" validate:"required"`
	DepartmentID        int64           `json:"department" validate:"required"`
	PayeeName           string          `json:"name" validate:"required"`
	AccountNumber       string          `json:"account" validate:"required"`
	InvoiceAmount       decimal.Decimal `json:"invoice_amount" validate:"required,gt=0"`
	CashAdvance         decimal.Decimal `json:"cash_advance" validate:"required,gt=0"`
	Narration           string          `json:"narration" validate:"required"`
	RefundReimbursement string          `json:"refund_reimbursement" validate:"required"`
	LessWhat            string          `json:"less_what" validate:"required"`
	Amount              decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type pettyCashAdvanceForm struct {
	BranchID      int64           `json:"branch" validate:"required"`
	DepartmentID  int64           `json:"department" validate:"required"`
	PayeeName     string          `json:"name" validate:"required"`
	AccountNumber string          `json:"account" validate:"required"`
	Items         []LineItemInput `json:"items" validate:"min=1,dive"`
	Description   string          `json:"description" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type pettyCashRetirementForm struct {
	BranchID      int64           `json:"branch" validate:"required"`
	DepartmentID  int64           `json:"department" validate:"required"`
	PayeeName     string          `json:"name" validate:"required"`
	AccountNumber string          `json:"account" validate:"required"`
	Items         []LineItemInput `json:"items" validate:"min=1,dive"`
	Description   string          `json:"description" validate:"required"`
	RetiredAmount decimal.Decimal `json:"retired_amount" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type stationeryForm struct {
	BranchID     int64           `json:"branch" validate:"required"`
	DepartmentID int64           `json:"department" validate:"required"`
	Description  string          `json:"description" validate:"required"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
	Items        []LineItemInput `json:"items" validate:"min=1,dive"`
}

// formFor returns the validation struct of the input's type and the documents it requires
func formFor(in *CreateRequestInput) (interface{}, []entity.DocumentKind) {
	switch in.Type {
	case entity.RequestTypeCashAdvance:
		return cashAdvanceForm{
			BranchID:      in.BranchID,
			DepartmentID:  in.DepartmentID,
			PayeeName:     strings.TrimSpace(in.PayeeName),
			AccountNumber: strings.TrimSpace(in.AccountNumber),
			InvoiceAmount: in.InvoiceAmount,
			CashAdvance:   in.CashAdvance,
			Narration:     strings.TrimSpace(in.Narration),
			LessWhat:      strings.TrimSpace(in.LessWhat),
			Amount:        in.Amount,
		}, []entity.DocumentKind{entity.DocumentManagementBoardApproval, entity.DocumentProformaInvoice}
	case entity.RequestTypeOpexCapexRetirement:
		return opexCapexRetirementForm{
			BranchID:            in.BranchID,
			DepartmentID:        in.DepartmentID,
			PayeeName:           strings.TrimSpace(in.PayeeName),
			AccountNumber:       strings.TrimSpace(in.AccountNumber),
			InvoiceAmount:       in.InvoiceAmount,
			CashAdvance:         in.CashAdvance,
			Narration:           strings.TrimSpace(in.Narration),
			RefundReimbursement: strings.TrimSpace(in.RefundReimbursement),
			LessWhat:            strings.TrimSpace(in.LessWhat),
			Amount:              in.Amount,
		}, []entity.DocumentKind{entity.DocumentReceipt}
	case entity.RequestTypePettyCashAdvance:
		return pettyCashAdvanceForm{
			BranchID:      in.BranchID,
			DepartmentID:  in.DepartmentID,
			PayeeName:     strings.TrimSpace(in.PayeeName),
			AccountNumber: strings.TrimSpace(in.AccountNumber),
			Items:         in.Items,
			Description:   strings.TrimSpace(in.Description),
			Amount:        in.Amount,
		}, nil
	case entity.RequestTypePettyCashRetirement:
		return pettyCashRetirementForm{
			BranchID:      in.BranchID,
			DepartmentID:  in.DepartmentID,
			PayeeName:     strings.TrimSpace(in.PayeeName),
			AccountNumber: strings.TrimSpace(in.AccountNumber),
			Items:         in.Items,
			Description:   strings.TrimSpace(in.Description),
			RetiredAmount: in.RetiredAmount,
			Amount:        in.Amount,
		}, []entity.DocumentKind{entity.DocumentReceipt}
	case entity.RequestTypeStationery:
		return stationeryForm{
			BranchID:     in.BranchID,
			DepartmentID: in.DepartmentID,
			Description:  strings.TrimSpace(in.Description),
			Quantity:     in.Quantity,
			Items:        in.Items,
		}, nil
	}
	return nil, nil
}

// documentErrors checks required kinds and allowed extensions
func documentErrors(in *CreateRequestInput, required []entity.DocumentKind) []apperror.FieldError {
	var fields []apperror.FieldError

	present := make(map[entity.DocumentKind]bool, len(in.Documents))
	for _, doc := range in.Documents {
		if !doc.Kind.IsValid() {
			fields = append(fields, apperror.FieldError{Field: "documents", Message: "unknown document kind " + string(doc.Kind)})
			continue
		}
		if !AllowedDocumentExtensions[strings.ToLower(filepath.Ext(doc.FileName))] {
			fields = append(fields, apperror.FieldError{
				Field:   string(doc.Kind),
				Message: "file type not allowed; use pdf, png, jpg or jpeg",
			})
			continue
		}
		if len(doc.Content) == 0 {
			fields = append(fields, apperror.FieldError{Field: string(doc.Kind), Message: "file is empty"})
			continue
		}
		present[doc.Kind] = true
	}

	for _, kind := range required {
		if !present[kind] && !hasField(fields, string(kind)) {
			fields = append(fields, apperror.FieldError{Field: string(kind), Message: "is required"})
		}
	}
	return fields
}

func hasField(fields []apperror.FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

// requestAmount is the stored amount: the item total for stationery, the submitted total otherwise
func requestAmount(in *CreateRequestInput) decimal.Decimal {
	if in.Type == entity.RequestTypeStationery {
		return entity.SumLineItems(lineItems(in.Items))
	}
	return in.Amount
}

func lineItems(items []LineItemInput) []entity.LineItem {
	out := make([]entity.LineItem, 0, len(items))
	for i, item := range items {
		out = append(out, entity.LineItem{
			Position:    i + 1,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return out
}
