package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiketahq/tiketa-backend/pkg/enums"
)

// Transaction is one purchase attempt for a single event.
// FinalAmount = max(0, TotalAmount - DiscountAmount) - PointsUsed, never negative.
type Transaction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	EventID         uuid.UUID               `gorm:"column:event_id;type:uuid;not null;index"`
	InvoiceNumber   string                  `gorm:"column:invoice_number;type:text;not null;uniqueIndex:ux_transactions_invoice"`
	TotalAmount     decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal         `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	PointsUsed      int                     `gorm:"column:points_used;not null;default:0"`
	FinalAmount     decimal.Decimal         `gorm:"column:final_amount;type:numeric(12,2);not null"`
	PromotionID     *uuid.UUID              `gorm:"column:promotion_id;type:uuid"`
	CouponID        *uuid.UUID              `gorm:"column:coupon_id;type:uuid"`
	Status          enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'waiting_payment';index"`
	PaymentDeadline time.Time               `gorm:"column:payment_deadline;not null"`
	PaymentProof    *string                 `gorm:"column:payment_proof;type:text"`
	Items           []TransactionItem       `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	Buyer           *User                   `gorm:"foreignKey:UserID;references:ID"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
