// Package auth resolves who is asking and where they may go.  It keeps no
// signed-in user of its own: every call reads the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("no active session")
	ErrForbidden          = errors.New("role not allowed")
	ErrThrottled          = errors.New("too many failed login attempts")
)

// ThrottleError refuses a login until RetryAfter has passed.  It matches
// ErrThrottled.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%v, retry in %s", ErrThrottled, e.RetryAfter)
}

func (e *ThrottleError) Unwrap() error { return ErrThrottled }

// Views the shell can load.
const (
	ViewIndex             = "index"
	ViewAdminDashboard    = "admin/dashboard"
	ViewEmployeeDashboard = "empleado/dashboard"
)

// Entities with an update screen.
const (
	EntityPiece      = "pieza"
	EntityInventory  = "inventario"
	EntityProduction = "produccion"
)

// UserAuthenticator checks credentials.  *repository.UserRepo satisfies it.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// SessionStore persists the signed-in user.  *session.Store satisfies it.
type SessionStore interface {
	Read() (*model.User, error)
	Save(u model.User) error
	Clear() error
}

// Service implements login, logout and role checks.
type Service struct {
	users    UserAuthenticator
	sessions SessionStore
	throttle *Throttle
	logger   *slog.Logger
}

// NewService wires the service.  throttle may be nil.
func NewService(users UserAuthenticator, sessions SessionStore, throttle *Throttle, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, throttle: throttle, logger: logger.With(slog.String("component", "auth"))}
}

// LoginResult is the outcome of a successful login.  View is empty when the
// user's role has no dashboard.
type LoginResult struct {
	User model.User
	View string
}

// Login authenticates email/password, persists the session and picks the
// dashboard for the user's role.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !s.throttle.Allow(ctx, email) {
		retry := s.throttle.RetryAfter(ctx, email)
		s.logger.Warn("login throttled", slog.String("email", email), slog.Duration("retry_after", retry))
		return nil, &ThrottleError{RetryAfter: retry}
	}
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.throttle.Fail(ctx, email)
			s.logger.Info("login denied", slog.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if err := s.sessions.Save(*u); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.throttle.Reset(ctx, email)

	view := DashboardView(u.RoleID)
	if view == "" {
		s.logger.Warn("login with unrecognized role", slog.Int64("user_id", u.ID), slog.Int("role", u.RoleID))
	} else {
		s.logger.Info("login", slog.Int64("user_id", u.ID), slog.Int("role", u.RoleID))
	}
	return &LoginResult{User: *u, View: view}, nil
}

// Logout clears the session and returns the entry view.
func (s *Service) Logout(ctx context.Context) (string, error) {
	if err := s.sessions.Clear(); err != nil {
		return "", fmt.Errorf("clear session: %w", err)
	}
	return ViewIndex, nil
}

// Require returns the signed-in user if their role is one of roles; no roles
// means any signed-in user.  An unreadable session counts as anonymous.
func (s *Service) Require(ctx context.Context, roles ...int) (*model.User, error) {
	u, err := s.sessions.Read()
	if err != nil {
		if errors.Is(err, session.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, u.RoleID) {
		return nil, ErrForbidden
	}
	return u, nil
}

// DashboardView maps a role to its landing view, or "" for unknown roles.
func DashboardView(role int) string {
	switch role {
	case model.RoleAdmin:
		return ViewAdminDashboard
	case model.RoleEmployee:
		return ViewEmployeeDashboard
	}
	return ""
}

// UpdateView picks the update screen of entity for role.
func UpdateView(role int, entity string) (string, error) {
	switch role {
	case model.RoleAdmin:
		return "admin/actualizar-" + entity, nil
	case model.RoleEmployee:
		return "empleado/actualizar-" + entity, nil
	}
	return "", ErrForbidden
}
