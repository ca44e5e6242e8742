package transaction

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine is the transaction lifecycle engine. It owns type validation,
// installment expansion, recurrence projection, and the status state
// machine; all persistence goes through the injected Repository. The engine
// caches nothing between calls.
type Engine struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time

	// parentLocks serializes the sibling-completion read-modify-write per
	// installment parent, so two parcels paid at the same moment cannot
	// both miss the flip.
	parentLocks sync.Map // parent id -> *sync.Mutex
}

// NewEngine builds an engine around repo.
func NewEngine(repo Repository, log zerolog.Logger) *Engine {
	return &Engine{repo: repo, log: log, now: time.Now}
}

// Create validates req per its type and persists the resulting record(s):
// a parent plus N parcels for installments, a single row with a computed
// next occurrence for recurring, one plain row otherwise. The returned
// record is the parent for installments.
func (e *Engine) Create(req CreateRequest) (*Transaction, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	if req.Type == TypeInstallment && req.TotalInstallments != nil {
		return e.createInstallment(req)
	}
	if req.Type == TypeRecurring && req.RecurrencePattern != "" {
		return e.createRecurring(req)
	}

	tx := &Transaction{
		UserID:        req.UserID,
		AmountInCents: req.AmountInCents,
		Date:          req.Date,
		DueDate:       req.DueDate,
		Description:   req.Description,
		Type:          req.Type,
		Status:        DefaultStatus(req.Type),
	}
	if err := e.repo.Create(tx); err != nil {
		return nil, err
	}
	e.log.Info().Str("id", tx.ID).Str("type", string(tx.Type)).Msg("transaction created")
	return tx, nil
}

// createInstallment persists the parent first so its id is durably assigned
// before any parcel references it, then writes all parcels as one batch.
// There is no compensating rollback: if the batch write fails the parent
// stays persisted in isolation.
func (e *Engine) createInstallment(req CreateRequest) (*Transaction, error) {
	parent := buildInstallmentParent(req)
	if err := e.repo.Create(parent); err != nil {
		return nil, err
	}
	children := buildInstallmentChildren(req, parent.ID)
	if err := e.repo.CreateMany(children); err != nil {
		return nil, err
	}
	e.log.Info().Str("id", parent.ID).Int("installments", len(children)).Msg("installment plan created")
	return parent, nil
}

func (e *Engine) createRecurring(req CreateRequest) (*Transaction, error) {
	next := NextOccurrence(req.Date, req.RecurrencePattern)
	pattern := req.RecurrencePattern
	tx := &Transaction{
		UserID:            req.UserID,
		AmountInCents:     req.AmountInCents,
		Date:              req.Date,
		DueDate:           req.DueDate,
		Description:       req.Description,
		Type:              TypeRecurring,
		Status:            StatusPending,
		RecurrencePattern: &pattern,
		NextOccurrence:    &next,
	}
	if err := e.repo.Create(tx); err != nil {
		return nil, err
	}
	e.log.Info().Str("id", tx.ID).Str("pattern", pattern).Msg("recurring transaction created")
	return tx, nil
}

// Get loads a single transaction scoped to its owner.
func (e *Engine) Get(id, userID string) (*Transaction, error) {
	return e.repo.FindByID(id, userID)
}

// UpdateStatus transitions a transaction to newStatus after checking the
// type's status policy. Finalizing statuses stamp DateOccurred (supplied
// value or current time). Paying an installment parcel triggers the sibling
// completion check; completing a recurring transaction advances its next
// occurrence.
func (e *Engine) UpdateStatus(id, userID string, upd StatusUpdate) (*Transaction, error) {
	tx, err := e.repo.FindByID(id, userID)
	if err != nil {
		return nil, err
	}
	if err := validateStatus(tx.Type, upd.Status); err != nil {
		return nil, err
	}
	fields := e.statusFields(tx, upd)

	if tx.IsInstallmentChild() && upd.Status == StatusPaid {
		return e.payInstallmentChild(tx, fields)
	}
	return e.repo.Update(tx.ID, fields)
}

// statusFields computes the column updates a status transition implies.
func (e *Engine) statusFields(tx *Transaction, upd StatusUpdate) UpdateFields {
	status := upd.Status
	fields := UpdateFields{Status: &status}
	if IsFinalizing(status) {
		occurred := e.now()
		if upd.DateOccurred != nil {
			occurred = *upd.DateOccurred
		}
		fields.DateOccurred = &occurred
	}
	if tx.Type == TypeRecurring && status == StatusCompleted && tx.RecurrencePattern != nil {
		base := tx.Date
		if tx.NextOccurrence != nil {
			base = *tx.NextOccurrence
		}
		next := NextOccurrence(base, *tx.RecurrencePattern)
		fields.NextOccurrence = &next
	}
	return fields
}

// payInstallmentChild writes the parcel's transition and, if every sibling
// is now PAID, flips the parent. The whole read-modify-write runs under a
// per-parent lock so concurrent sibling payments observe each other.
func (e *Engine) payInstallmentChild(child *Transaction, fields UpdateFields) (*Transaction, error) {
	parentID := *child.ParentTransactionID
	muAny, _ := e.parentLocks.LoadOrStore(parentID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	updated, err := e.repo.Update(child.ID, fields)
	if err != nil {
		return nil, err
	}

	siblings, err := e.repo.FindMany(Query{ParentTransactionID: &parentID})
	if err != nil {
		return nil, err
	}
	for _, s := range siblings {
		if s.Status != StatusPaid {
			return updated, nil
		}
	}

	paid := StatusPaid
	occurred := e.now()
	if _, err := e.repo.Update(parentID, UpdateFields{Status: &paid, DateOccurred: &occurred}); err != nil {
		return nil, err
	}
	e.log.Info().Str("parentId", parentID).Msg("all installments paid, parent marked PAID")
	return updated, nil
}

// Update applies a partial field update. A type change re-validates the
// synthesized record against the new type's creation rules; a status change
// goes through the same policy check and side effects as UpdateStatus.
func (e *Engine) Update(id, userID string, req UpdateRequest) (*Transaction, error) {
	tx, err := e.repo.FindByID(id, userID)
	if err != nil {
		return nil, err
	}

	merged := *tx
	mergeUpdate(&merged, req)

	if req.Type != nil && *req.Type != tx.Type {
		if err := validateCreate(synthesizeCreate(&merged)); err != nil {
			return nil, err
		}
	}

	fields := UpdateFields{
		AmountInCents:     req.AmountInCents,
		Date:              req.Date,
		DueDate:           req.DueDate,
		Description:       req.Description,
		Type:              req.Type,
		TotalInstallments: req.TotalInstallments,
		RecurrencePattern: req.RecurrencePattern,
	}

	statusChanging := req.Status != nil && *req.Status != tx.Status
	if statusChanging {
		if err := validateStatus(merged.Type, *req.Status); err != nil {
			return nil, err
		}
		statusFields := e.statusFields(&merged, StatusUpdate{Status: *req.Status, DateOccurred: req.DateOccurred})
		fields.Status = statusFields.Status
		fields.DateOccurred = statusFields.DateOccurred
		fields.NextOccurrence = statusFields.NextOccurrence

		if tx.IsInstallmentChild() && *req.Status == StatusPaid {
			return e.payInstallmentChild(tx, fields)
		}
	}

	return e.repo.Update(tx.ID, fields)
}

func mergeUpdate(tx *Transaction, req UpdateRequest) {
	if req.AmountInCents != nil {
		tx.AmountInCents = *req.AmountInCents
	}
	if req.Date != nil {
		tx.Date = *req.Date
	}
	if req.DueDate != nil {
		tx.DueDate = req.DueDate
	}
	if req.Description != nil {
		tx.Description = *req.Description
	}
	if req.Type != nil {
		tx.Type = *req.Type
	}
	if req.TotalInstallments != nil {
		tx.TotalInstallments = req.TotalInstallments
	}
	if req.RecurrencePattern != nil {
		tx.RecurrencePattern = req.RecurrencePattern
	}
}

func synthesizeCreate(tx *Transaction) CreateRequest {
	pattern := ""
	if tx.RecurrencePattern != nil {
		pattern = *tx.RecurrencePattern
	}
	return CreateRequest{
		UserID:            tx.UserID,
		AmountInCents:     tx.AmountInCents,
		Date:              tx.Date,
		DueDate:           tx.DueDate,
		Description:       tx.Description,
		Type:              tx.Type,
		TotalInstallments: tx.TotalInstallments,
		RecurrencePattern: pattern,
	}
}

// List returns the user's transactions matching f. Installment parents are
// never returned; parcels are limited to the queried date range, or to the
// current calendar month when no date range was given. When the type filter
// targets RECURRING together with a date range, virtual occurrences are
// projected in.
func (e *Engine) List(userID string, f Filter) ([]*Transaction, error) {
	rows, err := e.repo.FindMany(Query{
		UserID:       userID,
		Types:        f.Types,
		Status:       f.Status,
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		StartDueDate: f.StartDueDate,
		EndDueDate:   f.EndDueDate,
	})
	if err != nil {
		return nil, err
	}

	var visible []*Transaction
	if f.hasDateRange() {
		visible = excludeInstallmentParents(rows)
	} else {
		visible = visibleThisMonth(rows, e.now())
	}

	if f.includesType(TypeRecurring) && f.hasDateRange() {
		// Projection walks all of the user's stored recurring rows, not
		// just the date-filtered fetch, so sources dated before the window
		// still project into it.
		sources, err := e.repo.FindMany(Query{UserID: userID, Types: []Type{TypeRecurring}})
		if err != nil {
			return nil, err
		}
		visible = append(visible, projectRecurring(sources, f, e.now())...)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Date.After(visible[j].Date)
	})
	return visible, nil
}

// excludeInstallmentParents drops aggregate installment records; only the
// payable parcels are user-visible line items.
func excludeInstallmentParents(rows []*Transaction) []*Transaction {
	out := make([]*Transaction, 0, len(rows))
	for _, tx := range rows {
		if tx.IsInstallmentParent() {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// visibleThisMonth additionally limits installment parcels to those dated in
// the present calendar month. Used by the plain, unfiltered list.
func visibleThisMonth(rows []*Transaction, now time.Time) []*Transaction {
	out := make([]*Transaction, 0, len(rows))
	for _, tx := range rows {
		if tx.IsInstallmentParent() {
			continue
		}
		if tx.IsInstallmentChild() &&
			(tx.Date.Month() != now.Month() || tx.Date.Year() != now.Year()) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Overdue returns PENDING expense and installment rows whose due date is
// strictly before today, ordered by due date ascending.
func (e *Engine) Overdue(userID string) ([]*Transaction, error) {
	today := startOfDay(e.now())
	cutoff := today.Add(-time.Nanosecond)
	pending := StatusPending
	rows, err := e.repo.FindMany(Query{
		UserID:     userID,
		Types:      []Type{TypeExpense, TypeInstallment},
		Status:     &pending,
		EndDueDate: &cutoff,
	})
	if err != nil {
		return nil, err
	}
	out := excludeInstallmentParents(rows)
	sortByDueDate(out)
	return out, nil
}

// UpcomingDue returns PENDING expense and installment rows due between today
// and daysAhead days from now (end of that day), ordered by due date
// ascending. daysAhead defaults to 7.
func (e *Engine) UpcomingDue(userID string, daysAhead int) ([]*Transaction, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	today := startOfDay(e.now())
	until := today.AddDate(0, 0, daysAhead).Add(24*time.Hour - time.Millisecond)
	pending := StatusPending
	rows, err := e.repo.FindMany(Query{
		UserID:       userID,
		Types:        []Type{TypeExpense, TypeInstallment},
		Status:       &pending,
		StartDueDate: &today,
		EndDueDate:   &until,
	})
	if err != nil {
		return nil, err
	}
	out := excludeInstallmentParents(rows)
	sortByDueDate(out)
	return out, nil
}

// Summarize folds the user's transactions (optionally date-bounded) into
// per-type and per-status count/amount buckets plus income/expense totals.
// It reads through List, so installment visibility applies and virtual
// occurrences stay out (no type filter is passed).
func (e *Engine) Summarize(userID string, startDate, endDate *time.Time) (*Summary, error) {
	rows, err := e.List(userID, Filter{StartDate: startDate, EndDate: endDate})
	if err != nil {
		return nil, err
	}

	s := &Summary{
		ByType:   make(map[Type]*Bucket, len(Types())),
		ByStatus: make(map[Status]*Bucket, len(Statuses())),
	}
	for _, t := range Types() {
		s.ByType[t] = &Bucket{}
	}
	for _, st := range Statuses() {
		s.ByStatus[st] = &Bucket{}
	}

	for _, tx := range rows {
		amount := tx.AmountInCents
		if b, ok := s.ByType[tx.Type]; ok {
			b.Count++
			b.Amount += amount
		}
		if b, ok := s.ByStatus[tx.Status]; ok {
			b.Count++
			b.Amount += amount
		}
		switch tx.Type {
		case TypeIncome:
			s.TotalIncome += amount
			if tx.Status == StatusPending {
				s.PendingIncome += amount
			}
		case TypeExpense, TypeInstallment:
			s.TotalExpenses += amount
			if tx.Status == StatusPending {
				s.PendingExpenses += amount
			}
		}
	}
	s.Balance = s.TotalIncome - s.TotalExpenses
	return s, nil
}

// InstallmentPlan loads a principal installment together with its parcels
// ordered by installment number. Asking for a parcel's id is a validation
// error; only principals are addressable here.
func (e *Engine) InstallmentPlan(id, userID string) (*InstallmentPlan, error) {
	tx, err := e.repo.FindByID(id, userID)
	if err != nil {
		return nil, err
	}
	if tx.Type != TypeInstallment {
		return nil, ErrNotFound
	}
	if tx.ParentTransactionID != nil {
		return nil, validationErr("id", "not a principal installment")
	}
	children, err := e.InstallmentChildren(id, userID)
	if err != nil {
		return nil, err
	}
	return &InstallmentPlan{Parent: tx, Children: children}, nil
}

// InstallmentChildren returns the parcels of a plan ordered by installment
// number.
func (e *Engine) InstallmentChildren(parentID, userID string) ([]*Transaction, error) {
	children, err := e.repo.FindMany(Query{
		UserID:              userID,
		Types:               []Type{TypeInstallment},
		ParentTransactionID: &parentID,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		ni, nj := 0, 0
		if children[i].InstallmentNumber != nil {
			ni = *children[i].InstallmentNumber
		}
		if children[j].InstallmentNumber != nil {
			nj = *children[j].InstallmentNumber
		}
		return ni < nj
	})
	return children, nil
}

// CountForUser returns how many transactions the user has stored.
func (e *Engine) CountForUser(userID string) (int64, error) {
	return e.repo.Count(Query{UserID: userID})
}

func sortByDueDate(rows []*Transaction) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DueDate == nil || rows[j].DueDate == nil {
			return rows[j].DueDate == nil && rows[i].DueDate != nil
		}
		return rows[i].DueDate.Before(*rows[j].DueDate)
	})
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
