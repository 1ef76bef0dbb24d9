package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Evidence is a file attached to a complaint. The bytes live in the file
// store under StoredName; only metadata is persisted here.
type Evidence struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"not null;index" json:"complaint_id"`
	UploaderID  uint      `gorm:"not null" json:"uploaded_by"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	StoredName  string    `gorm:"size:255;not null;uniqueIndex" json:"-"`
	ContentType string    `gorm:"size:100;not null" json:"file_type"`
	Size        int64     `gorm:"not null" json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate gives the record a collision-free stored name when the caller
// did not choose one. The original extension is kept.
func (e *Evidence) BeforeCreate(_ *gorm.DB) error {
	if e.StoredName == "" {
		e.StoredName = NewStoredName(e.FileName)
	}
	return nil
}

// NewStoredName returns a random file name carrying the lowercase extension
// of original.
func NewStoredName(original string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(original))
}
