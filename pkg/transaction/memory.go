package transaction

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository, safe for concurrent use.
// Data is lost on restart; it exists for tests and local experiments.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*Transaction
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*Transaction)}
}

func (r *MemoryRepository) Create(tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(tx)
	return nil
}

func (r *MemoryRepository) CreateMany(txs []*Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range txs {
		r.insertLocked(tx)
	}
	return nil
}

func (r *MemoryRepository) insertLocked(tx *Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	cp := *tx
	r.rows[tx.ID] = &cp
}

func (r *MemoryRepository) FindByID(id, userID string) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryRepository) FindMany(q Query) ([]*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Transaction
	for _, row := range r.rows {
		if matches(q, row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Update(id string, fields UpdateFields) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyFields(row, fields)
	row.UpdatedAt = time.Now()
	cp := *row
	return &cp, nil
}

func (r *MemoryRepository) Count(q Query) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if matches(q, row) {
			n++
		}
	}
	return n, nil
}

func applyFields(row *Transaction, f UpdateFields) {
	if f.AmountInCents != nil {
		row.AmountInCents = *f.AmountInCents
	}
	if f.Date != nil {
		row.Date = *f.Date
	}
	if f.DueDate != nil {
		d := *f.DueDate
		row.DueDate = &d
	}
	if f.Description != nil {
		row.Description = *f.Description
	}
	if f.Type != nil {
		row.Type = *f.Type
	}
	if f.Status != nil {
		row.Status = *f.Status
	}
	if f.DateOccurred != nil {
		d := *f.DateOccurred
		row.DateOccurred = &d
	}
	if f.InstallmentNumber != nil {
		n := *f.InstallmentNumber
		row.InstallmentNumber = &n
	}
	if f.TotalInstallments != nil {
		n := *f.TotalInstallments
		row.TotalInstallments = &n
	}
	if f.ParentTransactionID != nil {
		s := *f.ParentTransactionID
		row.ParentTransactionID = &s
	}
	if f.RecurrencePattern != nil {
		s := *f.RecurrencePattern
		row.RecurrencePattern = &s
	}
	if f.NextOccurrence != nil {
		d := *f.NextOccurrence
		row.NextOccurrence = &d
	}
}

func matches(q Query, row *Transaction) bool {
	if q.UserID != "" && row.UserID != q.UserID {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if row.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Status != nil && row.Status != *q.Status {
		return false
	}
	if q.StartDate != nil && row.Date.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && row.Date.After(*q.EndDate) {
		return false
	}
	if q.StartDueDate != nil && (row.DueDate == nil || row.DueDate.Before(*q.StartDueDate)) {
		return false
	}
	if q.EndDueDate != nil && (row.DueDate == nil || row.DueDate.After(*q.EndDueDate)) {
		return false
	}
	if q.ParentTransactionID != nil &&
		(row.ParentTransactionID == nil || *row.ParentTransactionID != *q.ParentTransactionID) {
		return false
	}
	return true
}
