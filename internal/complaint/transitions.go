package complaint

import (
	"context"
	"errors"
	"strings"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/escalation"
	"resolvex/backend/internal/lifecycle"
	"resolvex/backend/internal/models"
)

// step is one guarded read-modify-write on a complaint.
type step struct {
	// authorize runs against the freshly loaded complaint.
	authorize func(c *models.Complaint) error
	apply     func(c models.Complaint) (lifecycle.Transition, error)
}

// transition loads the complaint, checks rights and the caller's expected
// version, applies the lifecycle function and commits it against the
// version that was read. A concurrent writer makes the commit fail with
// Conflict; it is never retried here.
func (s *Service) transition(ctx context.Context, id uint, expected *int, st step) (*models.Complaint, error) {
	c, err := s.Storage.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.authorize(c); err != nil {
		return nil, err
	}
	if expected != nil && *expected != c.Version {
		return nil, apperr.Conflict("complaint has changed since it was read, reload and retry")
	}
	tr, err := st.apply(*c)
	if err != nil {
		return nil, err
	}
	if err := s.Storage.ApplyTransition(ctx, c.Version, &tr.Complaint, &tr.Entry); err != nil {
		return nil, err
	}
	s.announce(ctx, &tr.Complaint, tr.Entry.Action)
	return &tr.Complaint, nil
}

func canEdit(a access.Actor) func(c *models.Complaint) error {
	return func(c *models.Complaint) error {
		if !access.CanEdit(a, c) {
			return apperr.Authorization("only the assigned staff member or an admin can change this complaint")
		}
		return nil
	}
}

func requireCap(a access.Actor, cap access.Capability) func(*models.Complaint) error {
	return func(*models.Complaint) error { return access.Require(a, cap) }
}

// Assign gives the complaint to an active staff member.
func (s *Service) Assign(ctx context.Context, a access.Actor, id, staffID uint, expected *int) (*models.Complaint, error) {
	if err := access.Require(a, access.Assign); err != nil {
		return nil, err
	}
	staff, err := s.Storage.GetUser(ctx, staffID)
	if isKind(err, apperr.KindNotFound) {
		return nil, apperr.NotFound("staff member not found")
	}
	if err != nil {
		return nil, err
	}
	if staff.Role != models.RoleStaff {
		return nil, apperr.Validation("complaints can only be assigned to staff members")
	}
	if !staff.Active {
		return nil, apperr.Validation("staff member is inactive")
	}

	return s.transition(ctx, id, expected, step{
		authorize: requireCap(a, access.Assign),
		apply: func(c models.Complaint) (lifecycle.Transition, error) {
			return lifecycle.Assign(c, staff.ID, &a.ID, s.Now())
		},
	})
}

// UpdateStatus moves the complaint along the lifecycle table.
func (s *Service) UpdateStatus(ctx context.Context, a access.Actor, id uint, to models.Status, expected *int) (*models.Complaint, error) {
	return s.transition(ctx, id, expected, step{
		authorize: canEdit(a),
		apply: func(c models.Complaint) (lifecycle.Transition, error) {
			return lifecycle.ChangeStatus(c, to, &a.ID, s.Now())
		},
	})
}

// UpdatePriority changes urgency. The due date keeps its classification
// time value.
func (s *Service) UpdatePriority(ctx context.Context, a access.Actor, id uint, p models.Priority, expected *int) (*models.Complaint, error) {
	return s.transition(ctx, id, expected, step{
		authorize: canEdit(a),
		apply: func(c models.Complaint) (lifecycle.Transition, error) {
			return lifecycle.ChangePriority(c, p, &a.ID, s.Now())
		},
	})
}

// Categorize is the manual classification of a complaint the classifier
// could not place. The due date is recomputed from the new priority.
func (s *Service) Categorize(ctx context.Context, a access.Actor, id uint, category string, p models.Priority, expected *int) (*models.Complaint, error) {
	category = strings.TrimSpace(category)
	return s.transition(ctx, id, expected, step{
		authorize: requireCap(a, access.Categorize),
		apply: func(c models.Complaint) (lifecycle.Transition, error) {
			return lifecycle.Categorize(c, lifecycle.Classification{
				Category: category,
				Priority: p,
				DueDate:  s.Policy.DueDate(c.CreatedAt, p),
			}, &a.ID, s.Now())
		},
	})
}

// Escalate flags the complaint by hand.
func (s *Service) Escalate(ctx context.Context, a access.Actor, id uint, reason string, expected *int) (*models.Complaint, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual escalation"
	}
	return s.transition(ctx, id, expected, step{
		authorize: canEdit(a),
		apply: func(c models.Complaint) (lifecycle.Transition, error) {
			return lifecycle.Escalate(c, reason, &a.ID, s.Now())
		},
	})
}

// EscalateOverdue escalates every complaint past its due date on behalf of
// the system. Complaints changed concurrently are skipped and picked up by
// the next sweep.
func (s *Service) EscalateOverdue(ctx context.Context) (int, error) {
	now := s.Now()
	overdue, err := s.Storage.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	var errs []error
	n := 0
	for i := range overdue {
		c := overdue[i]
		if !escalation.Eligible(&c, now) {
			continue
		}
		tr, err := lifecycle.Escalate(c, escalation.OverdueReason(&c, now), nil, now)
		if err == nil {
			err = s.Storage.ApplyTransition(ctx, c.Version, &tr.Complaint, &tr.Entry)
		}
		switch {
		case err == nil:
			n++
			s.log.Info().Uint("complaint_id", c.ID).Str("priority", string(c.Priority)).Msg("complaint escalated")
			s.announce(ctx, &tr.Complaint, tr.Entry.Action)
		case isKind(err, apperr.KindConflict), isKind(err, apperr.KindValidation):
			s.log.Debug().Err(err).Uint("complaint_id", c.ID).Msg("skipping escalation")
		default:
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return n, errors.Join(errs...)
}
