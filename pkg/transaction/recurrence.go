package transaction

import (
	"fmt"
	"sort"
	"time"
)

// NextOccurrence advances date by one recurrence period. Monthly and yearly
// use calendar arithmetic with Go's AddDate normalization, so e.g.
// 2024-01-31 + monthly lands on 2024-03-02 (Feb 31 normalized), matching the
// date-library rollover rule rather than a fixed 30-day step. An unknown
// pattern returns the input unchanged.
func NextOccurrence(date time.Time, pattern string) time.Time {
	switch pattern {
	case PatternWeekly:
		return date.AddDate(0, 0, 7)
	case PatternMonthly:
		return date.AddDate(0, 1, 0)
	case PatternYearly:
		return date.AddDate(1, 0, 0)
	}
	return date
}

// virtualID derives the synthetic id of a projected occurrence from its
// source transaction and the occurrence date. Stored ids are UUIDs, so the
// underscore suffix can never collide with a persisted id.
func virtualID(sourceID string, occurrence time.Time) string {
	return fmt.Sprintf("%s_%d", sourceID, occurrence.UnixMilli())
}

func dedupKey(date time.Time, description string, amount int64) string {
	return fmt.Sprintf("%d|%s|%d", date.UTC().Unix(), description, amount)
}

// projectRecurring produces virtual occurrences for the recurring rows in
// rows over the queried window. For each non-cancelled RECURRING row it walks
// the recurrence forward from the row's own date, skips occurrences before
// the window start, and stops past the window end (or one year from now when
// the filter has no end date, so an open-ended walk always terminates). An
// occurrence is suppressed when a persisted row with the same date,
// description and amount already exists, or when an earlier source already
// projected it; a materialized occurrence is itself a source, so its walk
// must not duplicate its origin's. Sources are walked in date-then-id order
// so repeated projections yield the same synthetic ids. Results are never
// written back.
func projectRecurring(rows []*Transaction, f Filter, now time.Time) []*Transaction {
	end := now.AddDate(1, 0, 0)
	if f.EndDate != nil {
		end = *f.EndDate
	}

	existing := make(map[string]bool)
	var sources []*Transaction
	for _, row := range rows {
		if row.Type != TypeRecurring {
			continue
		}
		existing[dedupKey(row.Date, row.Description, row.AmountInCents)] = true
		if row.Status != StatusCancelled && row.RecurrencePattern != nil {
			sources = append(sources, row)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if !sources[i].Date.Equal(sources[j].Date) {
			return sources[i].Date.Before(sources[j].Date)
		}
		return sources[i].ID < sources[j].ID
	})

	var virtuals []*Transaction
	for _, row := range sources {
		pattern := *row.RecurrencePattern
		prev := row.Date
		for {
			occ := NextOccurrence(prev, pattern)
			if !occ.After(prev) {
				break // non-advancing pattern, nothing to walk
			}
			if occ.After(end) {
				break
			}
			if f.StartDate == nil || !occ.Before(*f.StartDate) {
				key := dedupKey(occ, row.Description, row.AmountInCents)
				if !existing[key] {
					existing[key] = true
					virtuals = append(virtuals, virtualOccurrence(row, occ))
				}
			}
			prev = occ
		}
	}
	return virtuals
}

// virtualOccurrence synthesizes the projected, non-persisted instance of a
// recurring transaction at the given date.
func virtualOccurrence(source *Transaction, date time.Time) *Transaction {
	pattern := *source.RecurrencePattern
	return &Transaction{
		ID:                virtualID(source.ID, date),
		UserID:            source.UserID,
		AmountInCents:     source.AmountInCents,
		Date:              date,
		Description:       source.Description,
		Type:              TypeRecurring,
		Status:            StatusPending,
		RecurrencePattern: &pattern,
		Virtual:           true,
	}
}
