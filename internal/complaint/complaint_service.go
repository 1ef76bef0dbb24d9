// Package complaint orchestrates every client action on complaints: it
// resolves the actor's rights, runs the lifecycle transition, persists the
// result with its audit entry and announces the change.
package complaint

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/analysis"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/classifier"
	"resolvex/backend/internal/escalation"
	"resolvex/backend/internal/feedback"
	"resolvex/backend/internal/filestore"
	"resolvex/backend/internal/lifecycle"
	"resolvex/backend/internal/models"
	"resolvex/backend/internal/storage"

	"github.com/rs/zerolog"
)

// FileStore holds evidence payloads.
type FileStore interface {
	Save(ctx context.Context, r io.Reader) (filestore.Saved, error)
	Open(name string) (*os.File, error)
	Remove(name string) error
}

// Notifier is told about committed changes. Failures are the notifier's
// problem and never affect the change itself.
type Notifier interface {
	Notify(ctx context.Context, ev models.ComplaintEvent, c *models.Complaint)
}

// Service handles the business logic for complaints.
type Service struct {
	Storage    storage.Storage
	Classifier classifier.Classifier
	Policy     escalation.Policy
	Files      FileStore
	// Notifier is optional.
	Notifier Notifier
	// Now is the clock; tests replace it.
	Now func() time.Time

	log zerolog.Logger
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, cl classifier.Classifier, p escalation.Policy, files FileStore, log zerolog.Logger) *Service {
	return &Service{
		Storage:    s,
		Classifier: cl,
		Policy:     p,
		Files:      files,
		Now:        time.Now,
		log:        log.With().Str("component", "complaint").Logger(),
	}
}

type SubmitInput struct {
	Title       string
	Description string
	Location    string
}

// Submit creates a complaint and runs automatic classification. A failing
// classifier never fails the submission: the complaint then stays submitted
// with medium priority and no category.
func (s *Service) Submit(ctx context.Context, a access.Actor, in SubmitInput) (*models.Complaint, error) {
	if err := access.Require(a, access.CreateComplaint); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	switch {
	case in.Title == "":
		return nil, apperr.Validation("title is required")
	case len(in.Title) > 255:
		return nil, apperr.Validation("title must be at most 255 characters")
	case in.Description == "":
		return nil, apperr.Validation("description is required")
	case len(in.Location) > 255:
		return nil, apperr.Validation("location must be at most 255 characters")
	}

	res := s.classify(ctx, in.Description)
	now := s.Now()
	c := &models.Complaint{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Status:      models.StatusSubmitted,
		Priority:    res.Priority,
		CreatorID:   a.ID,
		DueDate:     s.Policy.DueDate(now, res.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created := lifecycle.Created(*c, &a.ID, now)
	if err := s.Storage.CreateComplaint(ctx, c, &created); err != nil {
		return nil, err
	}
	s.announce(ctx, c, models.ActionCreated)

	if res.Category == nil {
		return c, nil
	}
	tr, err := lifecycle.Categorize(*c, lifecycle.Classification{
		Category: *res.Category,
		Priority: res.Priority,
	}, nil, now)
	if err == nil {
		err = s.Storage.ApplyTransition(ctx, c.Version, &tr.Complaint, &tr.Entry)
	}
	if err != nil {
		s.log.Warn().Err(err).Uint("complaint_id", c.ID).Msg("automatic categorization not applied")
		return c, nil
	}
	s.announce(ctx, &tr.Complaint, tr.Entry.Action)
	return &tr.Complaint, nil
}

func (s *Service) classify(ctx context.Context, text string) classifier.Result {
	fallback := classifier.Result{Priority: models.PriorityMedium}
	if s.Classifier == nil {
		return fallback
	}
	res, err := s.Classifier.Classify(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Msg("classifier failed, using defaults")
		return fallback
	}
	if !res.Priority.Valid() {
		res.Priority = models.PriorityMedium
	}
	if res.Category != nil && strings.TrimSpace(*res.Category) == "" {
		res.Category = nil
	}
	return res
}

// Get loads a complaint the actor may view. This is also the polling read.
func (s *Service) Get(ctx context.Context, a access.Actor, id uint) (*models.Complaint, error) {
	c, err := s.Storage.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(a, c) {
		return nil, apperr.Authorization("you cannot view this complaint")
	}
	return c, nil
}

// Actions is what the actor may do next with a complaint, for clients that
// render controls.
type Actions struct {
	NextStatuses    []models.Status `json:"next_statuses"`
	CanGiveFeedback bool            `json:"can_give_feedback"`
}

// ActionsFor derives Actions for a complaint already loaded through Get.
func (s *Service) ActionsFor(ctx context.Context, a access.Actor, c *models.Complaint) (Actions, error) {
	out := Actions{NextStatuses: []models.Status{}}
	if access.CanEdit(a, c) {
		out.NextStatuses = append(out.NextStatuses, lifecycle.Next(c.Status)...)
	}
	if c.CreatorID != a.ID {
		return out, nil
	}
	_, err := s.Storage.GetFeedback(ctx, c.ID)
	if err != nil && !isKind(err, apperr.KindNotFound) {
		return Actions{}, err
	}
	out.CanGiveFeedback = feedback.Eligible(a, c, err == nil)
	return out, nil
}

type ListFilter struct {
	Status   models.Status
	Priority models.Priority
	Limit    int
	Offset   int
}

// List returns the complaints visible to the actor: everything for admins,
// own and assigned for staff, own for users.
func (s *Service) List(ctx context.Context, a access.Actor, lf ListFilter) ([]models.Complaint, error) {
	f := models.ComplaintFilter{
		Status:   lf.Status,
		Priority: lf.Priority,
		Limit:    lf.Limit,
		Offset:   lf.Offset,
	}
	switch {
	case access.Can(a.Role, access.ViewAll):
	case access.Can(a.Role, access.ViewAssigned):
		f.CreatorOrAssignee = &a.ID
	case access.Can(a.Role, access.ViewOwn):
		f.CreatorID = &a.ID
	default:
		return nil, apperr.Authorization("you cannot list complaints")
	}
	return s.Storage.ListComplaints(ctx, f)
}

// Timeline returns the audit log of a complaint in commit order.
func (s *Service) Timeline(ctx context.Context, a access.Actor, id uint) ([]models.AuditLogEntry, error) {
	if _, err := s.Get(ctx, a, id); err != nil {
		return nil, err
	}
	return s.Storage.ListAuditLog(ctx, id)
}

// Summary aggregates every complaint for the reporting surface.
func (s *Service) Summary(ctx context.Context, a access.Actor) (analysis.Summary, error) {
	if err := access.Require(a, access.ViewAnalytics); err != nil {
		return analysis.Summary{}, err
	}
	complaints, err := s.Storage.ListComplaints(ctx, models.ComplaintFilter{})
	if err != nil {
		return analysis.Summary{}, err
	}
	staff, err := s.Storage.ListUsers(ctx, models.RoleStaff, models.RoleAdmin)
	if err != nil {
		return analysis.Summary{}, err
	}
	return analysis.Summarize(complaints, staff), nil
}

// announce publishes the committed change and notifies. Errors are logged
// only; the change is already durable.
func (s *Service) announce(ctx context.Context, c *models.Complaint, action models.AuditAction) {
	ev := models.NewComplaintEvent(*c, action, s.Now())
	if err := s.Storage.PublishEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Uint("complaint_id", c.ID).Str("action", string(action)).Msg("publish complaint event")
	}
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, ev, c)
	}
}

func isKind(err error, k apperr.Kind) bool {
	return err != nil && apperr.KindOf(err) == k
}
