package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/auth"
	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlstore"
)

// UserService handles sign-in, session resolution and account administration.
type UserService struct {
	store     *sqlstore.Store
	passwords *auth.PasswordManager
	tokens    *auth.TokenManager
	logger    *slog.Logger
}

func NewUserService(store *sqlstore.Store, passwords *auth.PasswordManager, tokens *auth.TokenManager, logger *slog.Logger) *UserService {
	return &UserService{store: store, passwords: passwords, tokens: tokens, logger: logger}
}

// LoginResult is handed back on successful sign-in.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type CreateUserInput struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
}

type UpdateUserInput struct {
	Name     models.Optional[string]      `json:"name"`
	Role     models.Optional[models.Role] `json:"role"`
	Password models.Optional[string]      `json:"password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

var errBadCredentials = &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "invalid email or password"}

// Login checks the credentials and issues a session token. Unknown addresses
// and wrong passwords fail the same way.
func (s *UserService) Login(ctx context.Context, email, password string) (_ LoginResult, err error) {
	ctx, span := startSpan(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()

	if s.tokens == nil {
		return LoginResult{}, errors.New("token manager not configured")
	}
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return LoginResult{}, errBadCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return LoginResult{}, errBadCredentials
		}
		return LoginResult{}, err
	}
	if err := s.passwords.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", "user_id", user.ID)
		return LoginResult{}, errBadCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a session token to the principal behind it. The role
// comes from the store, not the token, so changes apply immediately.
func (s *UserService) Authenticate(ctx context.Context, token string) (access.Principal, error) {
	if s.tokens == nil {
		return access.Principal{}, errors.New("token manager not configured")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return access.Principal{}, apperr.Unauthenticated()
	}
	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return access.Principal{}, apperr.Unauthenticated()
		}
		return access.Principal{}, err
	}
	return access.Principal{ID: user.ID, Role: user.Role}, nil
}

// List returns every user ordered by name. Admin only.
func (s *UserService) List(ctx context.Context, actor *access.Principal) (_ []models.User, err error) {
	ctx, span := startSpan(ctx, "UserService.List")
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// Create adds an account. Admin only.
func (s *UserService) Create(ctx context.Context, actor *access.Principal, in CreateUserInput) (_ models.User, err error) {
	ctx, span := startSpan(ctx, "UserService.Create")
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAdmin(actor)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.Register(ctx, in)
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "actor", p.ID)
	return user, nil
}

// Register validates and stores a new account without an acting principal.
// It backs Create and the bootstrap tooling.
func (s *UserService) Register(ctx context.Context, in CreateUserInput) (models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.User{}, apperr.Validation("name is required")
	}
	email, err := auth.NormalizeEmail(in.Email)
	if err != nil {
		return models.User{}, apperr.Validation("invalid email address")
	}
	if _, ok := models.ValidRoles[in.Role]; !ok {
		return models.User{}, apperr.Validation("role must be ADMIN or MEMBER")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	var created models.User
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		if _, err := q.GetUserByEmail(ctx, email); err == nil {
			return apperr.Validation("email already in use")
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		created, err = q.CreateUser(ctx, models.User{Name: name, Email: email, PasswordHash: hash, Role: in.Role})
		return err
	})
	return created, err
}

// Update changes name, role or password of an account. Admin only.
func (s *UserService) Update(ctx context.Context, actor *access.Principal, id string, in UpdateUserInput) (_ models.User, err error) {
	ctx, span := startSpan(ctx, "UserService.Update", attribute.String("user.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := access.RequireAdmin(actor); err != nil {
		return models.User{}, err
	}

	var hash string
	if in.Password.Set {
		if hash, err = s.hash(in.Password.V); err != nil {
			return models.User{}, err
		}
	}
	if in.Role.Set {
		if _, ok := models.ValidRoles[in.Role.V]; !ok {
			return models.User{}, apperr.Validation("role must be ADMIN or MEMBER")
		}
	}
	name := strings.TrimSpace(in.Name.V)
	if in.Name.Set && name == "" {
		return models.User{}, apperr.Validation("name must not be empty")
	}

	var updated models.User
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		user, err := q.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if in.Name.Set {
			user.Name = name
		}
		if in.Role.Set {
			user.Role = in.Role.V
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		if err := q.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	return updated, err
}

// Delete removes an account, unassigning it from tasks and clearing the
// references other rows hold. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *access.Principal, id string) (err error) {
	ctx, span := startSpan(ctx, "UserService.Delete", attribute.String("user.id", id))
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAdmin(actor)
	if err != nil {
		return err
	}
	if id == p.ID {
		return apperr.Validation("cannot delete yourself")
	}
	err = s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		if _, err := q.GetUser(ctx, id); err != nil {
			return err
		}
		return q.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "actor", p.ID)
	return nil
}

// Profile returns the caller's own account.
func (s *UserService) Profile(ctx context.Context, actor *access.Principal) (models.User, error) {
	p, err := access.RequireAuth(actor)
	if err != nil {
		return models.User{}, err
	}
	return s.store.GetUser(ctx, p.ID)
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor *access.Principal, in ChangePasswordInput) (err error) {
	ctx, span := startSpan(ctx, "UserService.ChangePassword")
	defer func() { endSpan(span, err) }()

	p, err := access.RequireAuth(actor)
	if err != nil {
		return err
	}
	if in.CurrentPassword == "" {
		return apperr.Validation("current password is required")
	}
	hash, err := s.hash(in.NewPassword)
	if err != nil {
		return err
	}

	return s.store.Tx(ctx, func(q *sqlstore.Queries) error {
		user, err := q.GetUser(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := s.passwords.ComparePassword(user.PasswordHash, in.CurrentPassword); err != nil {
			return apperr.Validation("current password is incorrect")
		}
		user.PasswordHash = hash
		return q.UpdateUser(ctx, user)
	})
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := s.passwords.HashPassword(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		detail := strings.TrimPrefix(err.Error(), auth.ErrWeakPassword.Error()+": ")
		return "", apperr.Validation("password " + detail)
	}
	return hash, err
}
