package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
)

// ListUsers returns accounts, only instructors when instructorsOnly is set.
func (s *IdentityService) ListUsers(ctx context.Context, instructorsOnly bool, limit int) ([]model.UserAccount, error) {
	f := model.UserFilter{}
	if instructorsOnly {
		f.Role = model.RoleInstructor
	}
	if limit > 0 {
		f.Limit = limit
	}
	users, err := s.users.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ChangeRole sets a user's role. An empty role promotes to instructor.
func (s *IdentityService) ChangeRole(ctx context.Context, id, role string) (model.UpdateResult, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		role = model.RoleInstructor
	}
	if !model.ValidRole(role) {
		return model.UpdateResult{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	res, err := s.users.SetRole(ctx, id, role)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("change role: %w", err)
	}
	if res.ModifiedCount > 0 {
		s.log.Info("role changed", slog.String("user_id", id), slog.String("role", role))
	}
	return res, nil
}

func (s *IdentityService) DeleteUser(ctx context.Context, id string) (model.DeleteResult, error) {
	res, err := s.users.Delete(ctx, id)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete user: %w", err)
	}
	return res, nil
}
