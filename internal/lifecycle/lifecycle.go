// Package lifecycle is the complaint state machine. Every function is pure:
// it takes the current complaint and returns the next state together with
// the audit entry describing the change, or a validation error and nothing.
//
// Authorization is not checked here; callers gate each call with the access
// package before applying the result.
package lifecycle

import (
	"fmt"
	"strconv"
	"time"

	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"
)

// transitions lists the statuses reachable by an explicit status update.
// Categorization and assignment have their own functions.
var transitions = map[models.Status][]models.Status{
	models.StatusSubmitted:   {models.StatusCategorized},
	models.StatusCategorized: {models.StatusAssigned},
	models.StatusAssigned:    {models.StatusInProgress, models.StatusClosed},
	models.StatusInProgress:  {models.StatusResolved, models.StatusClosed},
	models.StatusResolved:    {models.StatusClosed},
	models.StatusClosed:      nil,
}

// manualTargets are the statuses a status update may request.
var manualTargets = map[models.Status]bool{
	models.StatusInProgress: true,
	models.StatusResolved:   true,
	models.StatusClosed:     true,
}

// Allowed reports whether the table permits from -> to.
func Allowed(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the statuses a status update may request from s, in table
// order.
func Next(s models.Status) []models.Status {
	var out []models.Status
	for _, to := range transitions[s] {
		if manualTargets[to] {
			out = append(out, to)
		}
	}
	return out
}

// Transition is the result of an accepted action: the complaint as it must
// be stored and the single audit entry recording the change.
type Transition struct {
	Complaint models.Complaint
	Entry     models.AuditLogEntry
}

// Classification is the outcome of categorizing a complaint.
type Classification struct {
	Category string
	Priority models.Priority
	// DueDate replaces the complaint's due date when non-nil.
	DueDate *time.Time
}

// Categorize moves a submitted complaint to categorized. A nil actor marks
// the automatic classification step.
func Categorize(c models.Complaint, cl Classification, actor *uint, now time.Time) (Transition, error) {
	if c.Status != models.StatusSubmitted {
		return Transition{}, apperr.Validationf("complaint is %s, only submitted complaints can be categorized", c.Status)
	}
	if cl.Category == "" {
		return Transition{}, apperr.Validation("category is required")
	}
	if !cl.Priority.Valid() {
		return Transition{}, apperr.Validationf("unknown priority %q", cl.Priority)
	}

	next := c
	category := cl.Category
	next.Category = &category
	next.Priority = cl.Priority
	next.Status = models.StatusCategorized
	if cl.DueDate != nil {
		due := *cl.DueDate
		next.DueDate = &due
	}
	next.UpdatedAt = now

	msg := fmt.Sprintf("categorized as %s with %s priority", category, cl.Priority)
	return Transition{
		Complaint: next,
		Entry:     entry(c.ID, actor, models.ActionCategorize, c.Category, &category, msg, now),
	}, nil
}

// Assign sets the responsible staff member. A categorized complaint becomes
// assigned; later non-terminal statuses keep their status and only change
// the assignee.
func Assign(c models.Complaint, staffID uint, actor *uint, now time.Time) (Transition, error) {
	switch {
	case c.Status.IsTerminal():
		return Transition{}, apperr.Validation("closed complaints cannot be reassigned")
	case c.Status.Before(models.StatusCategorized):
		return Transition{}, apperr.Validation("complaint must be categorized before assignment")
	case staffID == 0:
		return Transition{}, apperr.Validation("staff member is required")
	}

	var old *string
	if c.AssignedStaffID != nil {
		old = idString(*c.AssignedStaffID)
	}

	next := c
	id := staffID
	next.AssignedStaffID = &id
	if next.Status == models.StatusCategorized {
		next.Status = models.StatusAssigned
	}
	next.UpdatedAt = now

	msg := fmt.Sprintf("assigned to staff %d", staffID)
	if old != nil {
		msg = fmt.Sprintf("reassigned from staff %s to %d", *old, staffID)
	}
	return Transition{
		Complaint: next,
		Entry:     entry(c.ID, actor, models.ActionAssign, old, idString(staffID), msg, now),
	}, nil
}

// ChangeStatus applies an explicit status update. Only in_progress,
// resolved and closed may be requested, and only along the table.
func ChangeStatus(c models.Complaint, to models.Status, actor *uint, now time.Time) (Transition, error) {
	if !to.Valid() {
		return Transition{}, apperr.Validationf("unknown status %q", to)
	}
	if c.Status.IsTerminal() {
		return Transition{}, apperr.Validation("complaint is closed")
	}
	if !manualTargets[to] {
		return Transition{}, apperr.Validationf("status %s cannot be set directly", to)
	}
	if !Allowed(c.Status, to) {
		return Transition{}, apperr.Validationf("cannot move complaint from %s to %s", c.Status, to)
	}

	next := c
	next.Status = to
	next.UpdatedAt = now
	switch to {
	case models.StatusResolved:
		if next.ResolvedAt == nil {
			at := now
			next.ResolvedAt = &at
		}
	case models.StatusClosed:
		at := now
		next.ClosedAt = &at
	}

	old, nv := string(c.Status), string(to)
	return Transition{
		Complaint: next,
		Entry:     entry(c.ID, actor, models.ActionStatusChange, &old, &nv, "status changed to "+nv, now),
	}, nil
}

// ChangePriority updates urgency without touching status or due date.
func ChangePriority(c models.Complaint, p models.Priority, actor *uint, now time.Time) (Transition, error) {
	if !p.Valid() {
		return Transition{}, apperr.Validationf("unknown priority %q", p)
	}
	if c.Status.IsTerminal() {
		return Transition{}, apperr.Validation("complaint is closed")
	}
	if c.Priority == p {
		return Transition{}, apperr.Validationf("priority is already %s", p)
	}

	next := c
	next.Priority = p
	next.UpdatedAt = now

	old, nv := string(c.Priority), string(p)
	return Transition{
		Complaint: next,
		Entry:     entry(c.ID, actor, models.ActionPriorityChange, &old, &nv, "priority changed to "+nv, now),
	}, nil
}

// Escalate flags the complaint. Status is unchanged and the flag is never
// cleared, so escalating twice is rejected.
func Escalate(c models.Complaint, reason string, actor *uint, now time.Time) (Transition, error) {
	if c.Escalated {
		return Transition{}, apperr.Validation("complaint is already escalated")
	}
	if c.Status.IsTerminal() {
		return Transition{}, apperr.Validation("complaint is closed")
	}

	at := now
	if at.Before(c.CreatedAt) {
		at = c.CreatedAt
	}

	next := c
	next.Escalated = true
	next.EscalatedAt = &at
	next.EscalationReason = reason
	next.UpdatedAt = now

	old, nv := "false", "true"
	msg := "escalated"
	if reason != "" {
		msg = "escalated: " + reason
	}
	return Transition{
		Complaint: next,
		Entry:     entry(c.ID, actor, models.ActionEscalate, &old, &nv, msg, now),
	}, nil
}

// Created is the first timeline entry of a new complaint.
func Created(c models.Complaint, actor *uint, now time.Time) models.AuditLogEntry {
	st := string(c.Status)
	return entry(c.ID, actor, models.ActionCreated, nil, &st, "complaint submitted", now)
}

func entry(id uint, actor *uint, action models.AuditAction, old, nv *string, msg string, now time.Time) models.AuditLogEntry {
	e := models.AuditLogEntry{
		ComplaintID: id,
		Action:      action,
		OldValue:    copyStr(old),
		NewValue:    copyStr(nv),
		Message:     msg,
		CreatedAt:   now,
	}
	if actor != nil {
		a := *actor
		e.ActorID = &a
	}
	return e
}

func idString(id uint) *string {
	s := strconv.FormatUint(uint64(id), 10)
	return &s
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
