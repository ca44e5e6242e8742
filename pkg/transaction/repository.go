package transaction

import "time"

// Query is the predicate shape the engine hands to a repository. Date and
// due-date bounds are inclusive. Nil / empty fields are not constrained.
type Query struct {
	UserID              string
	Types               []Type
	Status              *Status
	StartDate           *time.Time
	EndDate             *time.Time
	StartDueDate        *time.Time
	EndDueDate          *time.Time
	ParentTransactionID *string
}

// UpdateFields carries a partial column update; nil fields are untouched.
type UpdateFields struct {
	AmountInCents       *int64
	Date                *time.Time
	DueDate             *time.Time
	Description         *string
	Type                *Type
	Status              *Status
	DateOccurred        *time.Time
	InstallmentNumber   *int
	TotalInstallments   *int
	ParentTransactionID *string
	RecurrencePattern   *string
	NextOccurrence      *time.Time
}

// Repository is the engine's only collaborator with side effects. Bindings
// to any storage are acceptable; a gorm/Postgres implementation and an
// in-memory one live alongside. Repository failures are treated as fatal for
// the current operation and passed through unchanged.
type Repository interface {
	// Create persists tx, assigning its id when empty, and fills in the
	// generated fields on the passed record.
	Create(tx *Transaction) error
	// CreateMany persists a batch in one write.
	CreateMany(txs []*Transaction) error
	// FindByID loads a transaction scoped to its owner. Returns ErrNotFound
	// when the id is absent or owned by someone else.
	FindByID(id, userID string) (*Transaction, error)
	// FindMany returns all rows matching q, in no particular order.
	FindMany(q Query) ([]*Transaction, error)
	// Update applies fields to the row with the given id and returns the
	// updated record.
	Update(id string, fields UpdateFields) (*Transaction, error)
	// Count returns the number of rows matching q.
	Count(q Query) (int64, error)
}
