package transaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidStatusesPerType(t *testing.T) {
	cases := map[Type][]Status{
		TypeIncome:      {StatusPending, StatusReceived, StatusCancelled},
		TypeExpense:     {StatusPending, StatusPaid, StatusCancelled},
		TypeInstallment: {StatusPending, StatusPaid, StatusCancelled},
		TypeRecurring:   {StatusPending, StatusCompleted, StatusCancelled},
		TypeTransfer:    {StatusPending, StatusCompleted, StatusCancelled},
	}
	for typ, want := range cases {
		assert.ElementsMatch(t, want, ValidStatuses(typ), "type %s", typ)
	}
	// unknown types fall back to the minimal pair
	assert.ElementsMatch(t, []Status{StatusPending, StatusCancelled}, ValidStatuses(Type("VOUCHER")))
}

func TestValidateStatusEnumeratesAllowedSet(t *testing.T) {
	err := validateStatus(TypeIncome, StatusPaid)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "PENDING, RECEIVED, CANCELLED")

	assert.NoError(t, validateStatus(TypeIncome, StatusReceived))
	assert.NoError(t, validateStatus(TypeExpense, StatusPaid))
	assert.Error(t, validateStatus(TypeExpense, StatusReceived))
	assert.Error(t, validateStatus(TypeRecurring, StatusPaid))
	assert.NoError(t, validateStatus(TypeRecurring, StatusCompleted))
}

func TestDefaultStatus(t *testing.T) {
	assert.Equal(t, StatusCompleted, DefaultStatus(TypeTransfer))
	for _, typ := range []Type{TypeIncome, TypeExpense, TypeRecurring, TypeInstallment} {
		assert.Equal(t, StatusPending, DefaultStatus(typ))
	}
}

func TestIsFinalizing(t *testing.T) {
	assert.True(t, IsFinalizing(StatusPaid))
	assert.True(t, IsFinalizing(StatusReceived))
	assert.True(t, IsFinalizing(StatusCompleted))
	assert.False(t, IsFinalizing(StatusPending))
	assert.False(t, IsFinalizing(StatusCancelled))
}

func TestValidateCreate(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	three := 3
	one := 1

	base := CreateRequest{UserID: "u1", AmountInCents: 5000, Date: date, Description: "x"}

	income := base
	income.Type = TypeIncome
	assert.NoError(t, validateCreate(income))
	income.TotalInstallments = &three
	assert.True(t, IsValidation(validateCreate(income)), "income must reject installments")

	expense := base
	expense.Type = TypeExpense
	assert.NoError(t, validateCreate(expense))

	transfer := base
	transfer.Type = TypeTransfer
	assert.NoError(t, validateCreate(transfer))

	inst := base
	inst.Type = TypeInstallment
	assert.Error(t, validateCreate(inst), "installments require a count")
	inst.TotalInstallments = &one
	assert.Error(t, validateCreate(inst), "count below 2 is rejected")
	inst.TotalInstallments = &three
	assert.NoError(t, validateCreate(inst))
	inst.AmountInCents = 0
	assert.Error(t, validateCreate(inst), "amount must be positive")

	rec := base
	rec.Type = TypeRecurring
	assert.Error(t, validateCreate(rec), "recurring requires a pattern")
	rec.RecurrencePattern = "fortnightly"
	assert.Error(t, validateCreate(rec))
	rec.RecurrencePattern = "MONTHLY"
	assert.Error(t, validateCreate(rec), "patterns are canonically lowercase")
	rec.RecurrencePattern = PatternMonthly
	assert.NoError(t, validateCreate(rec))
}
