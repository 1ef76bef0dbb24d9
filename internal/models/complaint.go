package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is a step of the complaint lifecycle.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusCategorized Status = "categorized"
	StatusAssigned    Status = "assigned"
	StatusInProgress  Status = "in_progress"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

// Statuses lists the lifecycle in order.
var Statuses = []Status{
	StatusSubmitted, StatusCategorized, StatusAssigned,
	StatusInProgress, StatusResolved, StatusClosed,
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further status, priority or assignment
// change is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusClosed
}

// IsOpen reports whether the complaint still awaits resolution.
func (s Status) IsOpen() bool {
	return s.Valid() && s != StatusResolved && s != StatusClosed
}

// Before reports whether s comes strictly earlier in the lifecycle than o.
func (s Status) Before(o Status) bool {
	return s.rank() < o.rank()
}

func (s Status) rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Priority expresses urgency. Higher priority means a shorter due window.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities is ordered from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Weight returns a comparable number, higher is more urgent. Unknown values weigh 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool { return p.Weight() > 0 }

func ParsePriority(v string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", v)
	}
	return p, nil
}

// Complaint is the aggregate every workflow action operates on.
//
// Version is bumped on every committed transition. Writers must present the
// version they read; a mismatch means another transition won the race.
type Complaint struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	Location         string     `gorm:"size:255" json:"location"`
	Status           Status     `gorm:"type:varchar(20);not null;default:submitted;index" json:"status"`
	Priority         Priority   `gorm:"type:varchar(20);not null;default:medium;index" json:"priority"`
	Category         *string    `gorm:"size:100;index" json:"category_name"`
	CreatorID        uint       `gorm:"not null;index" json:"user_id"`
	AssignedStaffID  *uint      `gorm:"index" json:"assigned_staff_id"`
	Escalated        bool       `gorm:"not null;default:false;index" json:"is_escalated"`
	EscalatedAt      *time.Time `json:"escalated_at"`
	EscalationReason string     `gorm:"type:text" json:"escalation_reason,omitempty"`
	DueDate          *time.Time `gorm:"index" json:"due_date"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	ClosedAt         *time.Time `json:"closed_at"`
	Version          int        `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether staff member id currently owns the complaint.
func (c *Complaint) IsAssignedTo(id uint) bool {
	return c.AssignedStaffID != nil && *c.AssignedStaffID == id
}

// ComplaintFilter narrows complaint listings. Zero values mean "any".
type ComplaintFilter struct {
	CreatorID  *uint
	AssigneeID *uint
	// CreatorOrAssignee matches complaints either created by or assigned to
	// the given user, used for staff listings.
	CreatorOrAssignee *uint
	Status            Status
	Priority          Priority
	Limit             int
	Offset            int
}
