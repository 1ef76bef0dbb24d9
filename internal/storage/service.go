package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the production store: PostgreSQL through gorm for records,
// Redis for events and locks. The DB must be opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   zerolog.Logger
	// owner identifies this process as a lock holder.
	owner string
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		log:   log.With().Str("component", "storage").Logger(),
		owner: uuid.NewString(),
	}
}

// Migrate creates or updates every table.
func (s *Service) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *Service) dbErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op + ": not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(op + ": already exists")
	}
	s.log.Error().Err(err).Str("op", op).Msg("database error")
	return apperr.Internal(op, err)
}

func (s *Service) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return s.dbErr("create user", s.DB.WithContext(ctx).Create(u).Error)
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, s.dbErr("user", err)
	}
	return &u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, s.dbErr("user", err)
	}
	return &u, nil
}

func (s *Service) ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	q := s.DB.WithContext(ctx).Order("id asc")
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, s.dbErr("list users", err)
	}
	return users, nil
}

func (s *Service) UpsertCategories(ctx context.Context, cats []models.Category) (int, error) {
	if len(cats) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&cats)
	if res.Error != nil {
		return 0, s.dbErr("upsert categories", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&cats).Error; err != nil {
		return nil, s.dbErr("list categories", err)
	}
	return cats, nil
}

func (s *Service) CreateComplaint(ctx context.Context, c *models.Complaint, created *models.AuditLogEntry) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Version == 0 {
			c.Version = 1
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		created.ComplaintID = c.ID
		return tx.Create(created).Error
	})
	return s.dbErr("create complaint", err)
}

func (s *Service) GetComplaint(ctx context.Context, id uint) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, s.dbErr("complaint", err)
	}
	return &c, nil
}

func (s *Service) ListComplaints(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, error) {
	q := s.DB.WithContext(ctx).Model(&models.Complaint{}).Order("created_at desc, id desc")
	if f.CreatorID != nil {
		q = q.Where("creator_id = ?", *f.CreatorID)
	}
	if f.AssigneeID != nil {
		q = q.Where("assigned_staff_id = ?", *f.AssigneeID)
	}
	if f.CreatorOrAssignee != nil {
		q = q.Where("creator_id = ? OR assigned_staff_id = ?", *f.CreatorOrAssignee, *f.CreatorOrAssignee)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []models.Complaint
	if err := q.Find(&out).Error; err != nil {
		return nil, s.dbErr("list complaints", err)
	}
	return out, nil
}

func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.DB.WithContext(ctx).
		Where("status NOT IN ?", []models.Status{models.StatusResolved, models.StatusClosed}).
		Where("escalated = ?", false).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Order("due_date asc").
		Find(&out).Error
	if err != nil {
		return nil, s.dbErr("list overdue", err)
	}
	return out, nil
}

func (s *Service) ApplyTransition(ctx context.Context, expectedVersion int, c *models.Complaint, e *models.AuditLogEntry) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := *c
		next.Version = expectedVersion + 1
		res := tx.Model(&models.Complaint{}).
			Where("id = ? AND version = ?", c.ID, expectedVersion).
			Select("*").
			Omit("id", "creator_id", "created_at").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Complaint{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperr.NotFound("complaint not found")
			}
			return apperr.Conflict("complaint was modified concurrently, reload and retry")
		}

		e.ComplaintID = c.ID
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		c.Version = next.Version
		c.UpdatedAt = next.UpdatedAt
		return nil
	})
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return s.dbErr("apply transition", err)
}

func (s *Service) ListAuditLog(ctx context.Context, complaintID uint) ([]models.AuditLogEntry, error) {
	var out []models.AuditLogEntry
	err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, s.dbErr("audit log", err)
	}
	return out, nil
}

func (s *Service) CreateEvidence(ctx context.Context, ev *models.Evidence) error {
	return s.dbErr("create evidence", s.DB.WithContext(ctx).Create(ev).Error)
}

func (s *Service) GetEvidence(ctx context.Context, id uint) (*models.Evidence, error) {
	var ev models.Evidence
	if err := s.DB.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, s.dbErr("evidence", err)
	}
	return &ev, nil
}

func (s *Service) ListEvidence(ctx context.Context, complaintID uint) ([]models.Evidence, error) {
	var out []models.Evidence
	err := s.DB.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, s.dbErr("list evidence", err)
	}
	return out, nil
}

func (s *Service) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	return s.dbErr("create feedback", s.DB.WithContext(ctx).Create(fb).Error)
}

func (s *Service) GetFeedback(ctx context.Context, complaintID uint) (*models.Feedback, error) {
	var fb models.Feedback
	if err := s.DB.WithContext(ctx).Where("complaint_id = ?", complaintID).First(&fb).Error; err != nil {
		return nil, s.dbErr("feedback", err)
	}
	return &fb, nil
}

// PublishEvent broadcasts ev to every subscriber of EventsChannel.
func (s *Service) PublishEvent(ctx context.Context, ev models.ComplaintEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(ctx, EventsChannel, raw).Err(); err != nil {
		return apperr.Internal("publish event", err)
	}
	return nil
}

func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.ComplaintEvent, error) {
	sub := s.Redis.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, apperr.Internal("subscribe events", err)
	}

	out := make(chan models.ComplaintEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.ComplaintEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn().Err(err).Msg("dropping malformed complaint event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// unlockScript deletes the key only while this process still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *Service) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.Redis.SetNX(ctx, key, s.owner, ttl).Result()
	if err != nil {
		return false, apperr.Internal("acquire lock", err)
	}
	return ok, nil
}

func (s *Service) Unlock(ctx context.Context, key string) error {
	if err := unlockScript.Run(ctx, s.Redis, []string{key}, s.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return apperr.Internal("release lock", err)
	}
	return nil
}
