package transaction

import (
	"fmt"
	"time"
)

// Installment expansion: one creation request becomes a parent record holding
// the financed total plus N child parcels. The parent must be persisted
// before the children are built so they can reference its id.

// buildInstallmentParent produces the aggregate record of the plan. Amount is
// the per-parcel amount times the parcel count.
func buildInstallmentParent(req CreateRequest) *Transaction {
	total := *req.TotalInstallments
	return &Transaction{
		UserID:            req.UserID,
		AmountInCents:     req.AmountInCents * int64(total),
		Date:              req.Date,
		DueDate:           req.DueDate,
		Description:       req.Description,
		Type:              TypeInstallment,
		Status:            StatusPending,
		TotalInstallments: req.TotalInstallments,
	}
}

// buildInstallmentChildren produces the N parcels referencing parentID. The
// i-th parcel (1-indexed) is dated i-1 whole calendar months after the start
// date; its due date is the supplied due date plus (i-1)*30 days, or the
// parcel's own date when no due date was given. Every parcel carries the
// identical per-parcel amount, so no rounding distribution is needed.
func buildInstallmentChildren(req CreateRequest, parentID string) []*Transaction {
	total := *req.TotalInstallments
	children := make([]*Transaction, 0, total)
	for i := 1; i <= total; i++ {
		date := req.Date.AddDate(0, i-1, 0)
		due := date
		if req.DueDate != nil {
			due = req.DueDate.Add(time.Duration(i-1) * 30 * 24 * time.Hour)
		}
		n := i
		dueCopy := due
		children = append(children, &Transaction{
			UserID:              req.UserID,
			AmountInCents:       req.AmountInCents,
			Date:                date,
			DueDate:             &dueCopy,
			Description:         fmt.Sprintf("%s - Installment %d/%d", req.Description, i, total),
			Type:                TypeInstallment,
			Status:              StatusPending,
			InstallmentNumber:   &n,
			TotalInstallments:   req.TotalInstallments,
			ParentTransactionID: &parentID,
		})
	}
	return children
}
