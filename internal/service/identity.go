package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// IdentityService handles login-or-register and user administration.
type IdentityService struct {
	users  UserStore
	tokens TokenIssuer
	log    *slog.Logger
}

// NewIdentityService builds login and account management over users;
// tokens signs the access tokens handed out on login.
func NewIdentityService(users UserStore, tokens TokenIssuer, log *slog.Logger) *IdentityService {
	return &IdentityService{users: users, tokens: tokens, log: log.With(slog.String("service", "identity"))}
}

// LoginOrRegister looks the account up by email, creating it first when
// req.Insert is set and none exists. It returns nil when no account exists
// afterwards.
func (s *IdentityService) LoginOrRegister(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, nil
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil && req.Insert {
		role := strings.TrimSpace(req.Role)
		if role == "" {
			role = model.RoleStudent
		}
		if !model.ValidRole(role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
		}
		acct := &model.UserAccount{
			Email: email,
			Name:  req.Name,
			Photo: req.Photo,
			Role:  role,
		}
		_, err = s.users.Create(ctx, acct)
		switch {
		case err == nil:
			s.log.Info("user registered", slog.String("email", email), slog.String("role", role))
		case errors.Is(err, repository.ErrDuplicate):
			// lost a race with a concurrent login for the same email
		default:
			return nil, fmt.Errorf("register user: %w", err)
		}
		if user, err = s.findUser(ctx, email); err != nil {
			return nil, err
		}
	}
	if user == nil {
		return nil, nil
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.LoginResponse{Token: token, Role: user.Role}, nil
}

func (s *IdentityService) findUser(ctx context.Context, email string) (*model.UserAccount, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
