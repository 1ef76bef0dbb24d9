package models

import "time"

// ComplaintEvent is broadcast to watchers whenever a complaint changes.
type ComplaintEvent struct {
	ComplaintID uint        `json:"complaint_id"`
	Action      AuditAction `json:"action"`
	Status      Status      `json:"status"`
	Priority    Priority    `json:"priority"`
	Escalated   bool        `json:"is_escalated"`
	Version     int         `json:"version"`
	At          time.Time   `json:"at"`
}

// NewComplaintEvent snapshots c after a change of kind action.
func NewComplaintEvent(c Complaint, action AuditAction, at time.Time) ComplaintEvent {
	return ComplaintEvent{
		ComplaintID: c.ID,
		Action:      action,
		Status:      c.Status,
		Priority:    c.Priority,
		Escalated:   c.Escalated,
		Version:     c.Version,
		At:          at,
	}
}
