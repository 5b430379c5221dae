package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketType tracks per-tier stock for an event.
// Invariant: 0 <= available_quantity <= quantity.
type TicketType struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID           uuid.UUID       `gorm:"column:event_id;type:uuid;not null;index"`
	Name              string          `gorm:"column:name;type:text;not null"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	AvailableQuantity int             `gorm:"column:available_quantity;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
