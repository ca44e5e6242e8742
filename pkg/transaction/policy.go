package transaction

import "strings"

// Type policy: pure mapping from a transaction type to its legal statuses,
// default initial status, and creation-time rules. No I/O.

// ValidStatuses returns the statuses legal for a transaction of type t.
// Unknown types fall back to the minimal PENDING/CANCELLED pair.
func ValidStatuses(t Type) []Status {
	switch t {
	case TypeIncome:
		return []Status{StatusPending, StatusReceived, StatusCancelled}
	case TypeExpense, TypeInstallment:
		return []Status{StatusPending, StatusPaid, StatusCancelled}
	case TypeRecurring, TypeTransfer:
		return []Status{StatusPending, StatusCompleted, StatusCancelled}
	default:
		return []Status{StatusPending, StatusCancelled}
	}
}

// DefaultStatus returns the status a freshly created transaction starts in.
// Transfers are treated as instantaneous and start COMPLETED.
func DefaultStatus(t Type) Status {
	if t == TypeTransfer {
		return StatusCompleted
	}
	return StatusPending
}

// IsFinalizing reports whether s marks the transaction's real-world event as
// having occurred. Finalizing transitions stamp DateOccurred.
func IsFinalizing(s Status) bool {
	switch s {
	case StatusPaid, StatusReceived, StatusCompleted:
		return true
	}
	return false
}

func validPattern(p string) bool {
	switch p {
	case PatternWeekly, PatternMonthly, PatternYearly:
		return true
	}
	return false
}

// validateCreate applies the per-type creation rules to a request.
func validateCreate(req CreateRequest) error {
	switch req.Type {
	case TypeIncome:
		if req.TotalInstallments != nil {
			return validationErr("totalInstallments", "income transactions cannot have installments")
		}
	case TypeExpense, TypeTransfer:
		// no extra constraint
	case TypeInstallment:
		if req.TotalInstallments == nil || *req.TotalInstallments < 2 {
			return validationErr("totalInstallments", "installment transactions must have at least 2 installments")
		}
		if req.AmountInCents <= 0 {
			return validationErr("amountInCents", "installment amount must be greater than 0")
		}
	case TypeRecurring:
		if req.RecurrencePattern == "" {
			return validationErr("recurrencePattern", "recurring transactions must have a recurrence pattern")
		}
		if !validPattern(req.RecurrencePattern) {
			return validationErr("recurrencePattern", "invalid recurrence pattern %q", req.RecurrencePattern)
		}
	default:
		return validationErr("type", "unknown transaction type %q", string(req.Type))
	}
	return nil
}

// validateStatus checks that s is a legal status for type t and, when it is
// not, enumerates the allowed set in the error.
func validateStatus(t Type, s Status) error {
	valid := ValidStatuses(t)
	for _, v := range valid {
		if v == s {
			return nil
		}
	}
	names := make([]string, len(valid))
	for i, v := range valid {
		names[i] = string(v)
	}
	return validationErr("status",
		"status %q is not valid for transaction type %q; valid statuses: %s",
		string(s), string(t), strings.Join(names, ", "))
}
