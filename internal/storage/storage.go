// Package storage persists users, categories, complaints and their
// attachments, and carries the complaint event stream and sweep locks.
//
// Two implementations exist: Service backed by PostgreSQL (gorm) and Redis,
// and Memory for tests and single-process development. Both return apperr
// kinds: NotFound for missing records, Conflict for stale versions and
// duplicates, Internal for everything else.
package storage

import (
	"context"
	"time"

	"resolvex/backend/internal/models"
)

// EventsChannel is the pub/sub channel carrying complaint events.
const EventsChannel = "complaints:events"

type Storage interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers returns users ordered by id, restricted to roles when given.
	ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error)

	// UpsertCategories inserts categories whose name is not stored yet and
	// reports how many were added.
	UpsertCategories(ctx context.Context, cats []models.Category) (int, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	// CreateComplaint stores a new complaint and its first audit entry
	// atomically.
	CreateComplaint(ctx context.Context, c *models.Complaint, created *models.AuditLogEntry) error
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
	ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error)
	// ListOverdue returns open, unescalated complaints whose due date is
	// before now.
	ListOverdue(ctx context.Context, now time.Time) ([]models.Complaint, error)
	// ApplyTransition writes c only if the stored version still equals
	// expectedVersion, bumps the version and appends e in the same
	// transaction. A stale version yields Conflict and nothing is written.
	ApplyTransition(ctx context.Context, expectedVersion int, c *models.Complaint, e *models.AuditLogEntry) error
	ListAuditLog(ctx context.Context, complaintID uint) ([]models.AuditLogEntry, error)

	CreateEvidence(ctx context.Context, ev *models.Evidence) error
	GetEvidence(ctx context.Context, id uint) (*models.Evidence, error)
	ListEvidence(ctx context.Context, complaintID uint) ([]models.Evidence, error)

	// CreateFeedback fails with Conflict when the complaint already has feedback.
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
	GetFeedback(ctx context.Context, complaintID uint) (*models.Feedback, error)

	PublishEvent(ctx context.Context, ev models.ComplaintEvent) error
	// SubscribeEvents streams events until ctx is done, then closes the channel.
	SubscribeEvents(ctx context.Context) (<-chan models.ComplaintEvent, error)

	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&models.User{},
		&models.Category{},
		&models.Complaint{},
		&models.AuditLogEntry{},
		&models.Evidence{},
		&models.Feedback{},
	}
}

var (
	_ Storage = (*Service)(nil)
	_ Storage = (*Memory)(nil)
)
