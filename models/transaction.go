package models

import "time"

// Transaction is the flat stored row serving every transaction kind. The
// type-specific optional columns are pointers so plain rows carry NULLs
// instead of zero values. Domain-level variants live in pkg/transaction;
// this shape exists only at the persistence boundary.
type Transaction struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    string `gorm:"size:36;index;not null"`

	AmountInCents int64      `gorm:"not null"` // integer minor units, never floats
	Date          time.Time  `gorm:"not null;index"`
	DueDate       *time.Time `gorm:"index"`
	Description   string     `gorm:"size:255;not null"`
	Type          string     `gorm:"size:16;not null;index"`
	Status        string     `gorm:"size:16;not null;index"`
	DateOccurred  *time.Time

	// installment columns
	InstallmentNumber   *int
	TotalInstallments   *int
	ParentTransactionID *string `gorm:"size:36;index"`

	// recurring columns
	RecurrencePattern *string `gorm:"size:16"`
	NextOccurrence    *time.Time
}
