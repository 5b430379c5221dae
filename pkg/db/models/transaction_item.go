package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionItem is an immutable purchase line. PriceAtBuy snapshots the
// ticket type price at creation time.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index"`
	TicketTypeID  uuid.UUID       `gorm:"column:ticket_type_id;type:uuid;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	PriceAtBuy    decimal.Decimal `gorm:"column:price_at_buy;type:numeric(12,2);not null"`
	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
