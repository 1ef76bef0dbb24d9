// Package users handles registration, login, session resolution and
// admin-side account management.
package users

import (
	"context"
	"net/mail"
	"slices"
	"sort"
	"strings"
	"time"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/auth"
	"resolvex/backend/internal/models"
	"resolvex/backend/internal/storage"

	"github.com/rs/zerolog"
)

const minPasswordLen = 8

type Service struct {
	Storage storage.Storage
	Tokens  *auth.Tokens
	log     zerolog.Logger
}

func NewService(s storage.Storage, tokens *auth.Tokens, log zerolog.Logger) *Service {
	return &Service{Storage: s, Tokens: tokens, log: log.With().Str("component", "users").Logger()}
}

type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	Department string
}

// CreateInput is RegisterInput plus the role an admin grants.
type CreateInput struct {
	RegisterInput
	Role models.Role
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"access_token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates a self-service account. The role is always user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleUser)
}

// CreateUser lets admins create staff and admins, and super admins any role.
func (s *Service) CreateUser(ctx context.Context, a access.Actor, in CreateInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validationf("unknown role %q", in.Role)
	}
	if !access.CanCreateRole(a, in.Role) {
		return nil, apperr.Authorization("you cannot create " + string(in.Role) + " accounts")
	}
	u, err := s.create(ctx, in.RegisterInput, in.Role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("actor_id", a.ID).Uint("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.FullName)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if name == "" {
		return nil, apperr.Validation("full name is required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validationf("password must be at least %d characters", minPasswordLen)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		Role:         role,
		Active:       true,
	}
	if d := strings.TrimSpace(in.Department); d != "" {
		u.Department = &d
	}
	if err := s.Storage.CreateUser(ctx, u); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Storage.GetUserByEmail(ctx, email)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.Unauthenticated("incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthenticated("incorrect email or password")
	}
	if !u.Active {
		return nil, apperr.Authorization("account is disabled")
	}

	tok, exp, err := s.Tokens.Issue(u)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: tok, TokenType: "bearer", ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a bearer token to the stored user. The role comes
// from storage, so a demoted or disabled account loses access at once.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		if auth.ErrExpired(err) {
			return nil, apperr.Unauthenticated("token expired")
		}
		return nil, apperr.Unauthenticated("invalid token")
	}
	u, err := s.Storage.GetUser(ctx, claims.UserID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.Unauthenticated("user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Unauthenticated("account is disabled")
	}
	return u, nil
}

// List returns active accounts ordered by name. Admins see users and staff
// only; super admins see every role. A non-empty role narrows the result.
func (s *Service) List(ctx context.Context, a access.Actor, role models.Role) ([]models.User, error) {
	if err := access.Require(a, access.ManageUsers); err != nil {
		return nil, err
	}
	visible := []models.Role{models.RoleUser, models.RoleStaff}
	if access.Can(a.Role, access.CreateSuperAdmin) {
		visible = models.Roles
	}
	if role != "" {
		if !slices.Contains(visible, role) {
			return []models.User{}, nil
		}
		visible = []models.Role{role}
	}

	all, err := s.Storage.ListUsers(ctx, visible...)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListStaff returns active staff members, the candidates for assignment.
func (s *Service) ListStaff(ctx context.Context, a access.Actor) ([]models.User, error) {
	if err := access.Require(a, access.Assign); err != nil {
		return nil, err
	}
	all, err := s.Storage.ListUsers(ctx, models.RoleStaff)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}
