package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon is a single-use discount bound to one user.
// Exactly one of DiscountPercentage/DiscountAmount is set.
type Coupon struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Code               string           `gorm:"column:code;type:text;not null;uniqueIndex"`
	DiscountPercentage *int             `gorm:"column:discount_percentage"`
	DiscountAmount     *decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2)"`
	IsUsed             bool             `gorm:"column:is_used;not null;default:false"`
	ValidFrom          time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil         time.Time        `gorm:"column:valid_until;not null"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
