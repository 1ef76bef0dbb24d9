// Package escalation decides when a complaint is overdue and runs the
// periodic sweep that escalates overdue complaints.
package escalation

import (
	"time"

	"resolvex/backend/internal/models"
)

// Policy maps priority to the window a complaint may stay unresolved.
type Policy struct {
	Windows map[models.Priority]time.Duration
}

func NewPolicy(windows map[models.Priority]time.Duration) Policy {
	w := make(map[models.Priority]time.Duration, len(windows))
	for k, v := range windows {
		w[k] = v
	}
	return Policy{Windows: w}
}

// DueDate returns created + window for priority p, or nil when the policy
// has no window for p.
func (p Policy) DueDate(created time.Time, pr models.Priority) *time.Time {
	w, ok := p.Windows[pr]
	if !ok || w <= 0 {
		return nil
	}
	due := created.Add(w)
	return &due
}

// Eligible reports whether the sweep should escalate c at now: still open,
// not yet escalated and past its due date.
func Eligible(c *models.Complaint, now time.Time) bool {
	if c.Escalated || !c.Status.IsOpen() || c.DueDate == nil {
		return false
	}
	return now.After(*c.DueDate)
}

// OverdueReason is the audit message used for automatic escalation.
func OverdueReason(c *models.Complaint, now time.Time) string {
	if c.DueDate == nil {
		return "overdue"
	}
	return "overdue by " + now.Sub(*c.DueDate).Round(time.Minute).String()
}
