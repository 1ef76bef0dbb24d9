package models

import "time"

// Feedback is the creator's rating of a resolved complaint. At most one
// record exists per complaint.
type Feedback struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"not null;uniqueIndex" json:"complaint_id"`
	UserID      uint      `gorm:"not null" json:"user_id"`
	Rating      int       `gorm:"not null" json:"rating"`
	Comment     *string   `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
