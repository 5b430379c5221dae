package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promotion is an event-scoped discount code with limited usage slots.
// Exactly one of DiscountPercentage/DiscountAmount is set.
type Promotion struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID            uuid.UUID        `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_promotions_event_code"`
	Code               string           `gorm:"column:code;type:text;not null;uniqueIndex:ux_promotions_event_code"`
	DiscountPercentage *int             `gorm:"column:discount_percentage"`
	DiscountAmount     *decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2)"`
	MaxUsage           int              `gorm:"column:max_usage;not null"`
	CurrentUsage       int              `gorm:"column:current_usage;not null;default:0"`
	ValidFrom          time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil         time.Time        `gorm:"column:valid_until;not null"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
