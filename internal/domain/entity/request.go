package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/esunday5/staff-portal/internal/domain/workflow"
)

// RequestType identifies one of the expense request forms
type RequestType string

const (
	RequestTypeCashAdvance         RequestType = "cash_advance"
	RequestTypeOpexCapexRetirement RequestType = "opex_capex_retirement"
	RequestTypePettyCashAdvance    RequestType = "petty_cash_advance"
	RequestTypePettyCashRetirement RequestType = "petty_cash_retirement"
	RequestTypeStationery          RequestType = "stationery_request"
)

var requestTypeLabels = map[RequestType]string{
	RequestTypeCashAdvance:         "Cash Advance",
	RequestTypeOpexCapexRetirement: "OPEX/CAPEX Retirement",
	RequestTypePettyCashAdvance:    "Petty Cash Advance",
	RequestTypePettyCashRetirement: "Petty Cash Retirement",
	RequestTypeStationery:          "Stationery Request",
}

// AllRequestTypes lists the supported request types
func AllRequestTypes() []RequestType {
	return []RequestType{
		RequestTypeCashAdvance,
		RequestTypeOpexCapexRetirement,
		RequestTypePettyCashAdvance,
		RequestTypePettyCashRetirement,
		RequestTypeStationery,
	}
}

// IsValid returns true for a supported request type
func (t RequestType) IsValid() bool {
	_, ok := requestTypeLabels[t]
	return ok
}

// Label returns the display name, e.g. "Cash Advance"
func (t RequestType) Label() string {
	if label, ok := requestTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// String returns the string representation of the request type
func (t RequestType) String() string {
	return string(t)
}

// Request is the common row shared by every request type
type Request struct {
	ID                int64           `json:"id"`
	Type              RequestType     `json:"request_type"`
	OfficerID         int64           `json:"officer_id"`
	BranchID          int64           `json:"branch_id"`
	DepartmentID      int64           `json:"department_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	Status            workflow.State  `json:"status"`
	Version           int64           `json:"version"`
	ResubmissionCount int             `json:"resubmission_count"`
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	Details           RequestDetails  `json:"details"`
	Items             []LineItem      `json:"items,omitempty"`
	Documents         []Document      `json:"documents,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RequestDetails holds the type specific columns; unused fields stay zero
type RequestDetails struct {
	PayeeName           string          `json:"payee_name,omitempty"`
	AccountNumber       string          `json:"account_number,omitempty"`
	InvoiceAmount       decimal.Decimal `json:"invoice_amount"`
	CashAdvance         decimal.Decimal `json:"cash_advance"`
	RetiredAmount       decimal.Decimal `json:"retired_amount"`
	Narration           string          `json:"narration,omitempty"`
	LessWhat            string          `json:"less_what,omitempty"`
	RefundReimbursement string          `json:"refund_reimbursement,omitempty"`
	Quantity            int             `json:"quantity,omitempty"`
}

// LineItem is one row of a petty cash or stationery list
type LineItem struct {
	ID          int64           `json:"id"`
	RequestID   int64           `json:"request_id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Total returns quantity × unit price
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// SumLineItems totals a list of items
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return total
}

// DocumentKind identifies the purpose of an uploaded document
type DocumentKind string

const (
	DocumentManagementBoardApproval DocumentKind = "management_board_approval"
	DocumentProformaInvoice         DocumentKind = "proforma_invoice"
	DocumentReceipt                 DocumentKind = "receipt"
)

// IsValid returns true for a known document kind
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentManagementBoardApproval, DocumentProformaInvoice, DocumentReceipt:
		return true
	}
	return false
}

// Document references an uploaded file in document storage
type Document struct {
	ID           int64        `json:"id"`
	RequestID    int64        `json:"request_id"`
	Kind         DocumentKind `json:"kind"`
	Path         string       `json:"path"`
	OriginalName string       `json:"original_name"`
	ContentType  string       `json:"content_type,omitempty"`
	Size         int64        `json:"size"`
	CreatedAt    time.Time    `json:"created_at"`
}

// HasDocument reports whether a document of kind is attached
func (r *Request) HasDocument(kind DocumentKind) bool {
	for _, d := range r.Documents {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
