package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"classwork/internal/models"
	"classwork/internal/storage"
)

// NewUser is the profile stored after the identity provider issued an id.
type NewUser struct {
	ID         string      `json:"id" validate:"required"`
	Name       string      `json:"name" validate:"required"`
	Email      string      `json:"email" validate:"required,email"`
	Role       models.Role `json:"role" validate:"required,oneof=student lecturer"`
	LecturerID string      `json:"lecturerId"`
}

// RegisterUser stores a user profile. The id comes from the identity provider.
func (m *Manager) RegisterUser(ctx context.Context, nu NewUser) (string, error) {
	nu.ID = cleanString(nu.ID)
	nu.Name = cleanString(nu.Name)
	nu.Email = strings.ToLower(cleanString(nu.Email))
	nu.LecturerID = cleanString(nu.LecturerID)
	if err := m.validate.Struct(nu); err != nil {
		return "", err
	}

	u := models.User{
		ID:        nu.ID,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: m.Now(),
	}
	if nu.LecturerID != "" && nu.Role == models.RoleStudent {
		u.LecturerID = ptr(nu.LecturerID)
	}
	err := m.store.WithTx(ctx, func(tx storage.Tx) error {
		_, err := tx.GetUser(ctx, u.ID)
		switch {
		case err == nil:
			return fmt.Errorf("user %s: %w", u.ID, ErrAlreadyExists)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return "", storeErr("register user", err)
	}

	m.logger.Info("user registered", slog.String("user", u.ID), slog.String("role", string(u.Role)))
	return u.ID, nil
}

// GetUser fetches a user profile.
func (m *Manager) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := m.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, storeErr("get user", err)
	}
	return u, nil
}

// ListUsers returns users with the given role, or everyone when role is empty.
func (m *Manager) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	users, err := m.store.ListUsers(ctx, role)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}
