package models

import "time"

// AuditAction names the kind of change an AuditLogEntry records.
type AuditAction string

const (
	ActionCreated        AuditAction = "created"
	ActionCategorize     AuditAction = "categorize"
	ActionAssign         AuditAction = "assign"
	ActionStatusChange   AuditAction = "status_change"
	ActionPriorityChange AuditAction = "priority_change"
	ActionEscalate       AuditAction = "escalate"
)

// AuditLogEntry is an append-only record of one committed change to a
// complaint. Entries are never updated or deleted.
type AuditLogEntry struct {
	// ID is assigned by storage and increases with insertion order.
	ID uint `gorm:"primaryKey" json:"id"`
	// ComplaintID is the complaint the change was applied to.
	ComplaintID uint `gorm:"not null;index:idx_complaint_log" json:"complaint_id"`
	// ActorID is the user who caused the change. Nil for system actions such
	// as automatic categorization and the escalation sweep.
	ActorID *uint `gorm:"index" json:"user_id"`
	// Action is the kind of change.
	Action AuditAction `gorm:"type:varchar(50);not null" json:"action"`
	// OldValue is the previous value, nil when there was none.
	OldValue *string `gorm:"type:text" json:"old_value"`
	// NewValue is the value after the change.
	NewValue *string `gorm:"type:text" json:"new_value"`
	// Message is a free-text note shown on the complaint timeline.
	Message string `gorm:"type:text" json:"message"`
	// CreatedAt is the time the change was committed.
	CreatedAt time.Time `gorm:"not null;index:idx_complaint_log" json:"created_at"`
}

// TableName keeps the log in its own, explicitly named table.
func (AuditLogEntry) TableName() string { return "complaint_logs" }
