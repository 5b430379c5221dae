package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

// Line describes one ticket-type quantity inside a reservation.
type Line struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

// Engine reserves and restores ticket stock. Both operations must run inside
// the caller's transaction; every decrement is a single conditional UPDATE so
// concurrent buyers of the last ticket serialize on the row guard.
type Engine interface {
	Reserve(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, lines []Line) error
	Restore(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, lines []Line) error
}

type engine struct{}

// NewEngine exposes the default reservation implementation.
func NewEngine() Engine {
	return engine{}
}

func (engine) Reserve(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity must be positive")
		}
		total += line.Quantity
	}
	if total == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one ticket is required")
	}

	for _, line := range lines {
		res := tx.WithContext(ctx).Exec(`
			UPDATE ticket_types
			SET available_quantity = available_quantity - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND event_id = ? AND available_quantity >= ?
		`, line.Quantity, line.TicketTypeID, eventID, line.Quantity)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve ticket stock")
		}
		if res.RowsAffected == 0 {
			return reserveFailure(ctx, tx, eventID, line)
		}
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE events
		SET available_seats = available_seats - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL AND available_seats >= ?
	`, total, eventID, total)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve event seats")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "not enough seats available for this event")
	}
	return nil
}

func (engine) Restore(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restore")
	}
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		total += line.Quantity

		res := tx.WithContext(ctx).Exec(`
			UPDATE ticket_types
			SET available_quantity = available_quantity + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND event_id = ? AND available_quantity + ? <= quantity
		`, line.Quantity, line.TicketTypeID, eventID, line.Quantity)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore ticket stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInternal, "ticket stock restore would exceed capacity")
		}
	}
	if total == 0 {
		return nil
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE events
		SET available_seats = available_seats + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_seats + ? <= total_seats
	`, total, eventID, total)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore event seats")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "event seat restore would exceed capacity")
	}
	return nil
}

// reserveFailure distinguishes an unknown ticket type from exhausted stock so
// callers surface the right error code.
func reserveFailure(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, line Line) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&models.TicketType{}).
		Where("id = ? AND event_id = ?", line.TicketTypeID, eventID).
		Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inspect ticket type")
	}
	if count == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found for this event")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "not enough tickets available")
}
