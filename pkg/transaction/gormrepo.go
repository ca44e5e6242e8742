package transaction

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pfin/models"
)

// GormRepository binds the Repository interface to a gorm-managed database.
// The flat models.Transaction row shape exists only here; the engine never
// sees it.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps db as a transaction repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(tx *Transaction) error {
	row := toRow(tx)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := r.db.Create(row).Error; err != nil {
		return err
	}
	*tx = *fromRow(row)
	return nil
}

func (r *GormRepository) CreateMany(txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*models.Transaction, len(txs))
	for i, tx := range txs {
		rows[i] = toRow(tx)
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}
	if err := r.db.Create(&rows).Error; err != nil {
		return err
	}
	for i, row := range rows {
		*txs[i] = *fromRow(row)
	}
	return nil
}

func (r *GormRepository) FindByID(id, userID string) (*Transaction, error) {
	var row models.Transaction
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *GormRepository) FindMany(q Query) ([]*Transaction, error) {
	var rows []models.Transaction
	if err := r.buildQuery(q).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Transaction, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

func (r *GormRepository) Update(id string, fields UpdateFields) (*Transaction, error) {
	updates := map[string]any{}
	if fields.AmountInCents != nil {
		updates["amount_in_cents"] = *fields.AmountInCents
	}
	if fields.Date != nil {
		updates["date"] = *fields.Date
	}
	if fields.DueDate != nil {
		updates["due_date"] = *fields.DueDate
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Type != nil {
		updates["type"] = string(*fields.Type)
	}
	if fields.Status != nil {
		updates["status"] = string(*fields.Status)
	}
	if fields.DateOccurred != nil {
		updates["date_occurred"] = *fields.DateOccurred
	}
	if fields.InstallmentNumber != nil {
		updates["installment_number"] = *fields.InstallmentNumber
	}
	if fields.TotalInstallments != nil {
		updates["total_installments"] = *fields.TotalInstallments
	}
	if fields.ParentTransactionID != nil {
		updates["parent_transaction_id"] = *fields.ParentTransactionID
	}
	if fields.RecurrencePattern != nil {
		updates["recurrence_pattern"] = *fields.RecurrencePattern
	}
	if fields.NextOccurrence != nil {
		updates["next_occurrence"] = *fields.NextOccurrence
	}
	if len(updates) > 0 {
		res := r.db.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	var row models.Transaction
	if err := r.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *GormRepository) Count(q Query) (int64, error) {
	var n int64
	if err := r.buildQuery(q).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *GormRepository) buildQuery(q Query) *gorm.DB {
	db := r.db.Model(&models.Transaction{})
	if q.UserID != "" {
		db = db.Where("user_id = ?", q.UserID)
	}
	if len(q.Types) == 1 {
		db = db.Where("type = ?", string(q.Types[0]))
	} else if len(q.Types) > 1 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		db = db.Where("type IN ?", types)
	}
	if q.Status != nil {
		db = db.Where("status = ?", string(*q.Status))
	}
	if q.StartDate != nil {
		db = db.Where("date >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		db = db.Where("date <= ?", *q.EndDate)
	}
	if q.StartDueDate != nil {
		db = db.Where("due_date >= ?", *q.StartDueDate)
	}
	if q.EndDueDate != nil {
		db = db.Where("due_date <= ?", *q.EndDueDate)
	}
	if q.ParentTransactionID != nil {
		db = db.Where("parent_transaction_id = ?", *q.ParentTransactionID)
	}
	return db
}

func toRow(tx *Transaction) *models.Transaction {
	row := &models.Transaction{
		ID:                  tx.ID,
		UserID:              tx.UserID,
		AmountInCents:       tx.AmountInCents,
		Date:                tx.Date,
		DueDate:             tx.DueDate,
		Description:         tx.Description,
		Type:                string(tx.Type),
		Status:              string(tx.Status),
		DateOccurred:        tx.DateOccurred,
		InstallmentNumber:   tx.InstallmentNumber,
		TotalInstallments:   tx.TotalInstallments,
		ParentTransactionID: tx.ParentTransactionID,
		NextOccurrence:      tx.NextOccurrence,
	}
	if tx.RecurrencePattern != nil {
		p := *tx.RecurrencePattern
		row.RecurrencePattern = &p
	}
	return row
}

func fromRow(row *models.Transaction) *Transaction {
	tx := &Transaction{
		ID:                  row.ID,
		UserID:              row.UserID,
		AmountInCents:       row.AmountInCents,
		Date:                row.Date,
		DueDate:             row.DueDate,
		Description:         row.Description,
		Type:                Type(row.Type),
		Status:              Status(row.Status),
		DateOccurred:        row.DateOccurred,
		InstallmentNumber:   row.InstallmentNumber,
		TotalInstallments:   row.TotalInstallments,
		ParentTransactionID: row.ParentTransactionID,
		NextOccurrence:      row.NextOccurrence,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.RecurrencePattern != nil {
		p := *row.RecurrencePattern
		tx.RecurrencePattern = &p
	}
	return tx
}
