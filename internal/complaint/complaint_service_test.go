package complaint_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/classifier"
	"resolvex/backend/internal/complaint"
	"resolvex/backend/internal/config"
	"resolvex/backend/internal/escalation"
	"resolvex/backend/internal/filestore"
	"resolvex/backend/internal/models"
	"resolvex/backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *complaint.Service
	store *storage.Memory
	clock *time.Time

	user, other, staff, otherStaff, admin access.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	policy := config.DefaultPolicy()
	files, err := filestore.New(filepath.Join(t.TempDir(), "uploads"), 1<<20)
	require.NoError(t, err)

	svc := complaint.NewService(store,
		classifier.NewKeyword(policy.CategoryModels(), policy.PriorityKeywords),
		escalation.NewPolicy(policy.DueWindows),
		files,
		zerolog.Nop(),
	)
	clock := t0
	svc.Now = func() time.Time { return clock }

	f := &fixture{svc: svc, store: store, clock: &clock}
	mk := func(email string, role models.Role) access.Actor {
		u := &models.User{Email: email, FullName: email, Role: role, Active: true}
		require.NoError(t, store.CreateUser(ctx, u))
		return access.ActorOf(*u)
	}
	f.user = mk("user@example.com", models.RoleUser)
	f.other = mk("other@example.com", models.RoleUser)
	f.staff = mk("staff@example.com", models.RoleStaff)
	f.otherStaff = mk("staff2@example.com", models.RoleStaff)
	f.admin = mk("admin@example.com", models.RoleAdmin)
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) submit(t *testing.T, description string) *models.Complaint {
	t.Helper()
	c, err := f.svc.Submit(context.Background(), f.user, complaint.SubmitInput{
		Title:       "Issue",
		Description: description,
		Location:    "Block A",
	})
	require.NoError(t, err)
	return c
}

// inProgress drives a freshly submitted, categorized complaint to in_progress.
func (f *fixture) inProgress(t *testing.T, description string) *models.Complaint {
	t.Helper()
	ctx := context.Background()
	c := f.submit(t, description)
	_, err := f.svc.Assign(ctx, f.admin, c.ID, f.staff.ID, nil)
	require.NoError(t, err)
	c, err = f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusInProgress, nil)
	require.NoError(t, err)
	return c
}

func TestSubmit_ClassifiesLeakingPipe(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	c := f.submit(t, "leaking pipe in block A")

	// Assert
	assert.Equal(t, models.StatusCategorized, c.Status)
	require.NotNil(t, c.Category)
	assert.Equal(t, "maintenance", *c.Category)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, t0.Add(7*24*time.Hour), *c.DueDate)

	logs, err := f.svc.Timeline(context.Background(), f.user, c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionCreated, logs[0].Action)
	assert.Equal(t, f.user.ID, *logs[0].ActorID)
	assert.Equal(t, models.ActionCategorize, logs[1].Action)
	assert.Nil(t, logs[1].ActorID, "automatic categorization is system-triggered")
}

func TestSubmit_Unclassifiable(t *testing.T) {
	f := newFixture(t)

	c := f.submit(t, "something odd happened")

	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Nil(t, c.Category)
	assert.Equal(t, models.PriorityMedium, c.Priority)
}

type MockClassifier struct{ mock.Mock }

func (m *MockClassifier) Classify(ctx context.Context, text string) (classifier.Result, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(classifier.Result), args.Error(1)
}

func TestSubmit_ClassifierFailureFallsBack(t *testing.T) {
	// Arrange
	f := newFixture(t)
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, "fire in the kitchen").
		Return(classifier.Result{}, errors.New("classifier unavailable"))
	f.svc.Classifier = cl

	// Act
	c := f.submit(t, "fire in the kitchen")

	// Assert
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Nil(t, c.Category)
	assert.Equal(t, models.PriorityMedium, c.Priority)
	cl.AssertExpectations(t)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.user, complaint.SubmitInput{Title: " ", Description: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Submit(ctx, f.user, complaint.SubmitInput{Title: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Submit(ctx, access.Actor{ID: 99, Role: "guest"}, complaint.SubmitInput{Title: "x", Description: "y"})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestManualCategorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "something odd happened")

	_, err := f.svc.Categorize(ctx, f.staff, c.ID, "other", models.PriorityHigh, nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	got, err := f.svc.Categorize(ctx, f.admin, c.ID, "other", models.PriorityHigh, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCategorized, got.Status)
	assert.Equal(t, "other", *got.Category)
	assert.Equal(t, t0.Add(72*time.Hour), *got.DueDate)
}

// TestUnassignedStaffCannotUpdate creates complaint #42, assigns it to one
// staff member and has another one try to change its status.
func TestUnassignedStaffCannotUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var c *models.Complaint
	for i := 0; i < 42; i++ {
		c = f.submit(t, "leaking pipe")
	}
	require.Equal(t, uint(42), c.ID)
	_, err := f.svc.Assign(ctx, f.admin, 42, f.staff.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.otherStaff, 42, models.StatusInProgress, nil)

	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	after, err := f.svc.Get(ctx, f.admin, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, after.Status)
}

// TestAssignComplaintSeven checks the assignment of complaint #7 produces
// exactly one assign entry.
func TestAssignComplaintSeven(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.submit(t, "leaking pipe")
	}
	before, err := f.svc.Timeline(ctx, f.admin, 7)
	require.NoError(t, err)

	got, err := f.svc.Assign(ctx, f.admin, 7, f.staff.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, got.Status)
	assert.Equal(t, f.staff.ID, *got.AssignedStaffID)

	logs, err := f.svc.Timeline(ctx, f.admin, 7)
	require.NoError(t, err)
	require.Len(t, logs, len(before)+1)
	last := logs[len(logs)-1]
	assert.Equal(t, models.ActionAssign, last.Action)
	assert.Nil(t, last.OldValue)
	assert.Equal(t, "3", *last.NewValue)
	assert.Equal(t, f.admin.ID, *last.ActorID)
}

func TestAssign_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "leaking pipe")

	_, err := f.svc.Assign(ctx, f.staff, c.ID, f.staff.ID, nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err), "staff cannot assign")

	_, err = f.svc.Assign(ctx, f.admin, c.ID, f.user.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "target must be staff")

	_, err = f.svc.Assign(ctx, f.admin, c.ID, 999, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Assign(ctx, f.admin, 999, f.staff.ID, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	unclassified := f.submit(t, "something odd")
	_, err = f.svc.Assign(ctx, f.admin, unclassified.ID, f.staff.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "must be categorized first")
}

func TestClosedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "leaking pipe")
	_, err := f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusClosed, nil)
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, f.admin, c.ID, f.otherStaff.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.UpdatePriority(ctx, f.admin, c.ID, models.PriorityHigh, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = f.svc.UpdateStatus(ctx, f.admin, c.ID, models.StatusResolved, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSkippingStatusFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "leaking pipe")

	_, err := f.svc.UpdateStatus(ctx, f.admin, c.ID, models.StatusResolved, nil)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	after, err := f.svc.Get(ctx, f.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, after)
}

func TestStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "leaking pipe")
	stale := c.Version

	_, err := f.svc.UpdatePriority(ctx, f.admin, c.ID, models.PriorityHigh, &stale)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusResolved, &stale)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	after, err := f.svc.Get(ctx, f.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, after.Status)
	assert.Equal(t, models.PriorityHigh, after.Priority)
}

func TestFeedback_ResolvedThenDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "leaking pipe")

	_, err := f.svc.SubmitFeedback(ctx, f.user, c.ID, 5, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "not resolved yet")

	_, err = f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusResolved, nil)
	require.NoError(t, err)

	fb, err := f.svc.SubmitFeedback(ctx, f.user, c.ID, 5, "thanks")
	require.NoError(t, err)
	assert.Equal(t, 5, fb.Rating)

	_, err = f.svc.SubmitFeedback(ctx, f.user, c.ID, 4, "again")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.SubmitFeedback(ctx, f.other, c.ID, 3, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	got, err := f.svc.GetFeedback(ctx, f.user, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "thanks", *got.Comment)
}

func TestActionsFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "leaking pipe")

	act, err := f.svc.ActionsFor(ctx, f.staff, c)
	require.NoError(t, err)
	assert.Equal(t, []models.Status{models.StatusResolved, models.StatusClosed}, act.NextStatuses)
	assert.False(t, act.CanGiveFeedback)

	act, err = f.svc.ActionsFor(ctx, f.otherStaff, c)
	require.NoError(t, err)
	assert.Empty(t, act.NextStatuses, "not assigned")

	c, err = f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusResolved, nil)
	require.NoError(t, err)
	act, err = f.svc.ActionsFor(ctx, f.user, c)
	require.NoError(t, err)
	assert.Empty(t, act.NextStatuses)
	assert.True(t, act.CanGiveFeedback)

	_, err = f.svc.SubmitFeedback(ctx, f.user, c.ID, 5, "")
	require.NoError(t, err)
	act, err = f.svc.ActionsFor(ctx, f.user, c)
	require.NoError(t, err)
	assert.False(t, act.CanGiveFeedback, "already submitted")

	act, err = f.svc.ActionsFor(ctx, f.admin, c)
	require.NoError(t, err)
	assert.Equal(t, []models.Status{models.StatusClosed}, act.NextStatuses)
	assert.False(t, act.CanGiveFeedback)
}

func TestEscalateOverdue_CriticalAfter25h(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "fire in the corridor")
	require.Equal(t, models.PriorityCritical, c.Priority)

	f.advance(23 * time.Hour)
	n, err := f.svc.EscalateOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(2 * time.Hour)
	n, err = f.svc.EscalateOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, f.admin, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Escalated)
	assert.Equal(t, t0.Add(25*time.Hour), *got.EscalatedAt)
	assert.Equal(t, models.StatusInProgress, got.Status)

	logs, err := f.svc.Timeline(ctx, f.admin, c.ID)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, models.ActionEscalate, last.Action)
	assert.Nil(t, last.ActorID)

	// Monotonic: nothing clears the flag and a second sweep is a no-op.
	f.advance(time.Hour)
	n, err = f.svc.EscalateOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	resolved, err := f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusResolved, nil)
	require.NoError(t, err)
	assert.True(t, resolved.Escalated)
}

func TestManualEscalate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.inProgress(t, "leaking pipe")

	_, err := f.svc.Escalate(ctx, f.user, c.ID, "please", nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	got, err := f.svc.Escalate(ctx, f.staff, c.ID, "", nil)
	require.NoError(t, err)
	assert.True(t, got.Escalated)
	assert.Equal(t, "manual escalation", got.EscalationReason)

	_, err = f.svc.Escalate(ctx, f.admin, c.ID, "again", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.inProgress(t, "leaking pipe")
	f.submit(t, "wifi down")
	_, err := f.svc.Submit(ctx, f.other, complaint.SubmitInput{Title: "x", Description: "garbage"})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, f.admin, complaint.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := f.svc.List(ctx, f.user, complaint.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	assigned, err := f.svc.List(ctx, f.staff, complaint.ListFilter{})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, mine.ID, assigned[0].ID)

	none, err := f.svc.List(ctx, f.otherStaff, complaint.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.Get(ctx, f.other, mine.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, "leaking pipe")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

	ev, err := f.svc.AddEvidence(ctx, f.user, c.ID, "../leak.png", bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "leak.png", ev.FileName)
	assert.Equal(t, "image/png", ev.ContentType)

	_, err = f.svc.AddEvidence(ctx, f.other, c.ID, "x.png", bytes.NewReader(png))
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = f.svc.AddEvidence(ctx, f.user, c.ID, "notes.txt", bytes.NewReader([]byte("plain text")))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	list, err := f.svc.ListEvidence(ctx, f.user, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	meta, file, err := f.svc.OpenEvidence(ctx, f.admin, ev.ID)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, png, body)
	assert.Equal(t, ev.ID, meta.ID)

	_, _, err = f.svc.OpenEvidence(ctx, f.other, ev.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Summary(ctx, f.admin)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalComplaints)
	assert.Nil(t, empty.AvgResolutionHours)

	c := f.inProgress(t, "leaking pipe")
	f.advance(4 * time.Hour)
	_, err = f.svc.UpdateStatus(ctx, f.staff, c.ID, models.StatusResolved, nil)
	require.NoError(t, err)
	f.submit(t, "something odd")

	s, err := f.svc.Summary(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalComplaints)
	assert.Equal(t, 1, s.ResolvedComplaints)
	assert.InDelta(t, 4.0, *s.AvgResolutionHours, 0.001)

	_, err = f.svc.Summary(ctx, f.staff)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, ev models.ComplaintEvent, c *models.Complaint) {
	m.Called(ctx, ev, c)
}

func TestEventsAndNotifications(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.store.SubscribeEvents(ctx)
	require.NoError(t, err)

	n := new(MockNotifier)
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return()
	f.svc.Notifier = n

	c := f.submit(t, "leaking pipe")
	_, err = f.svc.Assign(ctx, f.admin, c.ID, f.staff.ID, nil)
	require.NoError(t, err)

	var actions []models.AuditAction
	for len(actions) < 3 {
		select {
		case ev := <-events:
			assert.Equal(t, c.ID, ev.ComplaintID)
			actions = append(actions, ev.Action)
		case <-time.After(time.Second):
			t.Fatalf("only got %v", actions)
		}
	}
	assert.Equal(t, []models.AuditAction{models.ActionCreated, models.ActionCategorize, models.ActionAssign}, actions)
	n.AssertNumberOfCalls(t, "Notify", 3)
}
