package models

import (
	"time"

	"github.com/lib/pq"
)

// Category groups complaints and carries the keywords used to recognise
// them in free text.
type Category struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	Keywords        pq.StringArray `gorm:"type:text[]" json:"keywords"`
	DefaultPriority Priority       `gorm:"type:varchar(20);not null;default:medium" json:"default_priority"`
	CreatedAt       time.Time      `json:"created_at"`
}
