package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
)

// ItemParams is one requested purchase line.
type ItemParams struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required,gt=0"`
}

// CreateParams describes a new purchase. At most one of PromotionCode,
// CouponCode, or PointsToUse may be set.
type CreateParams struct {
	UserID        uuid.UUID
	EventID       uuid.UUID
	Items         []ItemParams
	PromotionCode string
	CouponCode    string
	PointsToUse   int
}

// ListParams filters a transaction listing. Exactly one of UserID or
// OrganizerID scopes the query.
type ListParams struct {
	UserID      uuid.UUID
	OrganizerID uuid.UUID
	Status      enums.TransactionStatus
	From        *time.Time
	To          *time.Time
	Limit       int
	Cursor      string
}

// ListResult wraps a page of transactions and the next cursor.
type ListResult struct {
	Items  []models.Transaction `json:"items"`
	Cursor string               `json:"cursor"`
}
