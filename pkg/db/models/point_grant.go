package models

import (
	"time"

	"github.com/google/uuid"
)

// PointGrant is one loyalty points batch. Consumption drains RemainingAmount;
// the original Amount is kept for history.
type PointGrant struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:ix_point_grants_user_expiry"`
	Amount          int       `gorm:"column:amount;not null"`
	RemainingAmount int       `gorm:"column:remaining_amount;not null"`
	ExpiresAt       time.Time `gorm:"column:expires_at;not null;index:ix_point_grants_user_expiry"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
