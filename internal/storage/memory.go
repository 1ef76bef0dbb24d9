package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"
)

// Memory keeps everything in process. A single mutex serialises writers,
// which gives the same single-writer and version semantics as Service.
// Records are copied on the way in and out so callers never share state.
type Memory struct {
	mu sync.Mutex

	nextID     map[string]uint
	users      map[uint]models.User
	categories []models.Category
	complaints map[uint]models.Complaint
	logs       map[uint][]models.AuditLogEntry
	evidence   map[uint]models.Evidence
	feedback   map[uint]models.Feedback // keyed by complaint id
	locks      map[string]time.Time

	subMu sync.Mutex
	subs  map[chan models.ComplaintEvent]struct{}

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		nextID:     map[string]uint{},
		users:      map[uint]models.User{},
		complaints: map[uint]models.Complaint{},
		logs:       map[uint][]models.AuditLogEntry{},
		evidence:   map[uint]models.Evidence{},
		feedback:   map[uint]models.Feedback{},
		locks:      map[string]time.Time{},
		subs:       map[chan models.ComplaintEvent]struct{}{},
		now:        time.Now,
	}
}

func (m *Memory) id(table string) uint {
	m.nextID[table]++
	return m.nextID[table]
}

func (m *Memory) stamp(t *time.Time) {
	if t.IsZero() {
		*t = m.now()
	}
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("create user: already exists")
		}
	}
	u.ID = m.id("users")
	m.stamp(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user: not found")
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user: not found")
}

func (m *Memory) ListUsers(_ context.Context, roles ...models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.User{}
	for _, u := range m.users {
		if len(roles) == 0 || hasRole(roles, u.Role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasRole(roles []models.Role, r models.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func (m *Memory) UpsertCategories(_ context.Context, cats []models.Category) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, c := range cats {
		exists := false
		for _, have := range m.categories {
			if have.Name == c.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		c.ID = m.id("categories")
		m.stamp(&c.CreatedAt)
		c.Keywords = append([]string(nil), c.Keywords...)
		m.categories = append(m.categories, c)
		added++
	}
	return added, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Category, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

func (m *Memory) CreateComplaint(_ context.Context, c *models.Complaint, created *models.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.id("complaints")
	if c.Version == 0 {
		c.Version = 1
	}
	m.stamp(&c.CreatedAt)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.complaints[c.ID] = cloneComplaint(*c)

	created.ComplaintID = c.ID
	m.appendLog(created)
	return nil
}

func (m *Memory) appendLog(e *models.AuditLogEntry) {
	e.ID = m.id("logs")
	m.stamp(&e.CreatedAt)
	m.logs[e.ComplaintID] = append(m.logs[e.ComplaintID], *e)
}

func (m *Memory) GetComplaint(_ context.Context, id uint) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.complaints[id]
	if !ok {
		return nil, apperr.NotFound("complaint: not found")
	}
	c = cloneComplaint(c)
	return &c, nil
}

func (m *Memory) ListComplaints(_ context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Complaint{}
	for _, c := range m.complaints {
		if matches(c, f) {
			out = append(out, cloneComplaint(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.Complaint{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(c models.Complaint, f models.ComplaintFilter) bool {
	switch {
	case f.CreatorID != nil && c.CreatorID != *f.CreatorID:
		return false
	case f.AssigneeID != nil && !c.IsAssignedTo(*f.AssigneeID):
		return false
	case f.CreatorOrAssignee != nil && c.CreatorID != *f.CreatorOrAssignee && !c.IsAssignedTo(*f.CreatorOrAssignee):
		return false
	case f.Status != "" && c.Status != f.Status:
		return false
	case f.Priority != "" && c.Priority != f.Priority:
		return false
	}
	return true
}

func (m *Memory) ListOverdue(_ context.Context, now time.Time) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Complaint{}
	for _, c := range m.complaints {
		if c.Status.IsOpen() && !c.Escalated && c.DueDate != nil && c.DueDate.Before(now) {
			out = append(out, cloneComplaint(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (m *Memory) ApplyTransition(_ context.Context, expectedVersion int, c *models.Complaint, e *models.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.complaints[c.ID]
	if !ok {
		return apperr.NotFound("complaint not found")
	}
	if stored.Version != expectedVersion {
		return apperr.Conflict("complaint was modified concurrently, reload and retry")
	}

	next := cloneComplaint(*c)
	next.Version = expectedVersion + 1
	next.CreatorID = stored.CreatorID
	next.CreatedAt = stored.CreatedAt
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = m.now()
	}
	m.complaints[c.ID] = next

	e.ComplaintID = c.ID
	m.appendLog(e)
	c.Version = next.Version
	c.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *Memory) ListAuditLog(_ context.Context, complaintID uint) ([]models.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.AuditLogEntry, len(m.logs[complaintID]))
	copy(out, m.logs[complaintID])
	return out, nil
}

func (m *Memory) CreateEvidence(_ context.Context, ev *models.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ev.BeforeCreate(nil); err != nil {
		return apperr.Internal("create evidence", err)
	}
	for _, have := range m.evidence {
		if have.StoredName == ev.StoredName {
			return apperr.Conflict("create evidence: already exists")
		}
	}
	ev.ID = m.id("evidence")
	m.stamp(&ev.CreatedAt)
	m.evidence[ev.ID] = *ev
	return nil
}

func (m *Memory) GetEvidence(_ context.Context, id uint) (*models.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.evidence[id]
	if !ok {
		return nil, apperr.NotFound("evidence: not found")
	}
	return &ev, nil
}

func (m *Memory) ListEvidence(_ context.Context, complaintID uint) ([]models.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Evidence{}
	for _, ev := range m.evidence {
		if ev.ComplaintID == complaintID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateFeedback(_ context.Context, fb *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.feedback[fb.ComplaintID]; exists {
		return apperr.Conflict("create feedback: already exists")
	}
	fb.ID = m.id("feedback")
	m.stamp(&fb.CreatedAt)
	stored := *fb
	if fb.Comment != nil {
		s := *fb.Comment
		stored.Comment = &s
	}
	m.feedback[fb.ComplaintID] = stored
	return nil
}

func (m *Memory) GetFeedback(_ context.Context, complaintID uint) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fb, ok := m.feedback[complaintID]
	if !ok {
		return nil, apperr.NotFound("feedback: not found")
	}
	return &fb, nil
}

// PublishEvent delivers ev to current subscribers. Slow subscribers miss
// events rather than block writers.
func (m *Memory) PublishEvent(_ context.Context, ev models.ComplaintEvent) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (m *Memory) SubscribeEvents(ctx context.Context) (<-chan models.ComplaintEvent, error) {
	ch := make(chan models.ComplaintEvent, 64)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.subMu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[key]; held && now.Before(until) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, key)
	return nil
}

func cloneComplaint(c models.Complaint) models.Complaint {
	c.Category = cloneStr(c.Category)
	c.AssignedStaffID = cloneUint(c.AssignedStaffID)
	c.EscalatedAt = cloneTime(c.EscalatedAt)
	c.DueDate = cloneTime(c.DueDate)
	c.ResolvedAt = cloneTime(c.ResolvedAt)
	c.ClosedAt = cloneTime(c.ClosedAt)
	return c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUint(p *uint) *uint {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
