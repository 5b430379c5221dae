package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a sellable event owned by an organizer. AvailableSeats is the
// event-wide seat counter decremented alongside per-ticket-type stock.
type Event struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizerID    uuid.UUID      `gorm:"column:organizer_id;type:uuid;not null;index"`
	Name           string         `gorm:"column:name;type:text;not null"`
	Description    *string        `gorm:"column:description;type:text"`
	Location       string         `gorm:"column:location;type:text;not null"`
	StartDate      time.Time      `gorm:"column:start_date;not null"`
	EndDate        time.Time      `gorm:"column:end_date;not null"`
	TotalSeats     int            `gorm:"column:total_seats;not null"`
	AvailableSeats int            `gorm:"column:available_seats;not null"`
	TicketTypes    []TicketType   `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
