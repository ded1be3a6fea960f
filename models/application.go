package models

import (
	"time"

	"cashadvance/pkg/lifecycle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Application is one cash-advance request. UserID is fixed at creation; the
// disbursement fields are only set from DISBURSED on and the repayment fields
// only at REPAID.
type Application struct {
	ID               string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt        time.Time           `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	UserID           string              `gorm:"type:varchar(36);index;not null" json:"userId"`
	Amount           decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	Purpose          string              `gorm:"size:500;not null" json:"purpose"`
	Status           lifecycle.Status    `gorm:"size:16;index;not null;default:PENDING" json:"status"`
	DisbursedAmount  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"disbursedAmount"`
	DisbursementDate *time.Time          `json:"disbursementDate"`
	RepaidAmount     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"repaidAmount"`
	RepaymentDate    *time.Time          `json:"repaymentDate"`
	RejectionReason  *string             `gorm:"size:500" json:"rejectionReason"`
	ApprovedBy       *string             `gorm:"size:100" json:"approvedBy"`
	ApprovedAt       *time.Time          `json:"approvedAt"`
	ExpressDelivery  bool                `gorm:"default:false;not null" json:"expressDelivery"`
	Tip              decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"tip"`
	Transactions     []Transaction       `json:"-"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = lifecycle.Pending
	}
	return nil
}

// Outstanding is what is left to repay: null before disbursement, never below zero.
func (a *Application) Outstanding() decimal.NullDecimal {
	if !a.DisbursedAmount.Valid {
		return decimal.NullDecimal{}
	}
	left := a.DisbursedAmount.Decimal
	if a.RepaidAmount.Valid {
		left = left.Sub(a.RepaidAmount.Decimal)
	}
	if left.IsNegative() {
		left = decimal.Zero
	}
	return decimal.NewNullDecimal(left)
}
