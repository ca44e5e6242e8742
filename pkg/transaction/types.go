package transaction

import (
	"strings"
	"time"
)

// Type classifies a transaction. The set is closed; changing the type of an
// existing transaction re-validates the record against the new type's rules.
type Type string

const (
	TypeIncome      Type = "INCOME"
	TypeExpense     Type = "EXPENSE"
	TypeTransfer    Type = "TRANSFER"
	TypeRecurring   Type = "RECURRING"
	TypeInstallment Type = "INSTALLMENT"
)

// Status is the lifecycle state of a transaction. Which statuses are legal
// depends on the transaction type (see policy.go).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusReceived  Status = "RECEIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Recurrence patterns are canonically lowercase, creation and update paths
// alike.
const (
	PatternWeekly  = "weekly"
	PatternMonthly = "monthly"
	PatternYearly  = "yearly"
)

// Types returns every known transaction type in a stable order.
func Types() []Type {
	return []Type{TypeIncome, TypeExpense, TypeTransfer, TypeRecurring, TypeInstallment}
}

// Statuses returns every known status in a stable order.
func Statuses() []Status {
	return []Status{StatusPending, StatusPaid, StatusReceived, StatusCompleted, StatusCancelled}
}

// ParseType maps a string onto a known Type, case-insensitively.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer, TypeRecurring, TypeInstallment:
		return t, true
	}
	return "", false
}

// ParseStatus maps a string onto a known Status, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPaid, StatusReceived, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// Transaction is the domain record the engine works with. Installment and
// recurring fields are pointers and are only populated for their kind; the
// flat storage mapping lives in the repository bindings.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	AmountInCents int64      `json:"amountInCents"`
	Date          time.Time  `json:"date"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Description   string     `json:"description"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	DateOccurred  *time.Time `json:"dateOccurred,omitempty"`

	InstallmentNumber   *int    `json:"installmentNumber,omitempty"`
	TotalInstallments   *int    `json:"totalInstallments,omitempty"`
	ParentTransactionID *string `json:"parentTransactionId,omitempty"`

	RecurrencePattern *string    `json:"recurrencePattern,omitempty"`
	NextOccurrence    *time.Time `json:"nextOccurrence,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Virtual marks a projected recurring occurrence that exists only in
	// query responses, never in storage.
	Virtual bool `json:"virtual,omitempty"`
}

// IsInstallmentParent reports whether t is the aggregate record of an
// installment plan (holds the financed total, not a payable parcel).
func (t *Transaction) IsInstallmentParent() bool {
	return t.Type == TypeInstallment && t.ParentTransactionID == nil
}

// IsInstallmentChild reports whether t is one payable parcel of a plan.
func (t *Transaction) IsInstallmentChild() bool {
	return t.Type == TypeInstallment && t.ParentTransactionID != nil
}

// CreateRequest is the single user-facing creation shape. Depending on Type
// it yields one plain row, one recurring row, or a parent plus N installment
// children.
type CreateRequest struct {
	UserID            string
	AmountInCents     int64
	Date              time.Time
	DueDate           *time.Time
	Description       string
	Type              Type
	TotalInstallments *int
	RecurrencePattern string
}

// StatusUpdate carries a requested status transition. DateOccurred, when
// nil, defaults to the current time for finalizing statuses.
type StatusUpdate struct {
	Status       Status
	DateOccurred *time.Time
}

// UpdateRequest carries a partial field update; nil fields are left alone.
type UpdateRequest struct {
	AmountInCents     *int64
	Date              *time.Time
	DueDate           *time.Time
	Description       *string
	Type              *Type
	Status            *Status
	DateOccurred      *time.Time
	TotalInstallments *int
	RecurrencePattern *string
}

// Filter is the list-query predicate surface.
type Filter struct {
	Types        []Type
	Status       *Status
	StartDate    *time.Time
	EndDate      *time.Time
	StartDueDate *time.Time
	EndDueDate   *time.Time
}

func (f Filter) hasDateRange() bool {
	return f.StartDate != nil || f.EndDate != nil
}

func (f Filter) includesType(t Type) bool {
	for _, ft := range f.Types {
		if ft == t {
			return true
		}
	}
	return false
}

// Bucket is one count/amount aggregation cell of a summary.
type Bucket struct {
	Count  int   `json:"count"`
	Amount int64 `json:"amount"`
}

// Summary is the per-type and per-status aggregation over a user's
// transactions. All amounts are integer cents.
type Summary struct {
	TotalIncome     int64 `json:"totalIncome"`
	TotalExpenses   int64 `json:"totalExpenses"`
	PendingIncome   int64 `json:"pendingIncome"`
	PendingExpenses int64 `json:"pendingExpenses"`
	Balance         int64 `json:"balance"`

	ByType   map[Type]*Bucket   `json:"byType"`
	ByStatus map[Status]*Bucket `json:"byStatus"`
}

// InstallmentPlan is a parent installment together with its ordered parcels.
type InstallmentPlan struct {
	Parent   *Transaction   `json:"parent"`
	Children []*Transaction `json:"installments"`
}
