package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiketahq/tiketa-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"type:text;not null;uniqueIndex"`
	FullName  string         `gorm:"column:full_name;not null"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
