package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiketahq/tiketa-backend/pkg/db/models"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

// Repository reads event and ticket-type data for checkout and listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	// FindEventForSale returns the event only while tickets can still be
	// bought: not soft-deleted and not yet started.
	FindEventForSale(ctx context.Context, eventID uuid.UUID, now time.Time) (*models.Event, error)
	FindTicketTypes(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]models.TicketType, error)
	IsOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository requires a database")
	}
	return &repository{db: db}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find event")
	}
	return &event, nil
}

func (r *repository) FindEventForSale(ctx context.Context, eventID uuid.UUID, now time.Time) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Where("id = ? AND start_date > ?", eventID, now).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found or no longer on sale")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find event for sale")
	}
	return &event, nil
}

func (r *repository) FindTicketTypes(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]models.TicketType, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one ticket type is required")
	}
	var ticketTypes []models.TicketType
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND id IN ?", eventID, ids).
		Find(&ticketTypes).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find ticket types")
	}
	return ticketTypes, nil
}

func (r *repository) IsOrganizer(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND organizer_id = ?", eventID, userID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event organizer")
	}
	return count > 0, nil
}
