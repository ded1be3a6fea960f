package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionPayment    TransactionType = "PAYMENT"
	TransactionRefund     TransactionType = "REFUND"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction is a ledger line. It references its user and application but owns neither.
type Transaction struct {
	ID            string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt     time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Amount        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Type          TransactionType   `gorm:"size:16;not null" json:"type"`
	Status        TransactionStatus `gorm:"size:16;not null;default:PENDING" json:"status"`
	Description   *string           `gorm:"size:255" json:"description"`
	Reference     *string           `gorm:"size:128" json:"reference"`
	UserID        string            `gorm:"type:varchar(36);index;not null" json:"userId"`
	ApplicationID *string           `gorm:"type:varchar(36);index" json:"applicationId"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TransactionPending
	}
	return nil
}
