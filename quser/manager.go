package quser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/types"
)

// Manager anchors a user's existence in the quota domain with an
// upsert-only record.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// New returns a Manager backed by s.
func New(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, logger: logger}
}

// Ensure creates the user record if absent, and updates email if supplied
// and different from what is stored. It never deletes or otherwise
// mutates existing fields beyond email and the updated-at timestamp.
func (m *Manager) Ensure(ctx context.Context, userID string, email *string) (*User, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	var existing User
	err := m.store.Get(ctx, store.CollectionUsers, userID, &existing)
	switch {
	case err == nil:
		if email != nil && (existing.Email == nil || *existing.Email != *email) {
			existing.Email = email
			existing.Touch()
			if err := m.store.Set(ctx, store.CollectionUsers, userID, &existing, store.SetOptions{Merge: true}); err != nil {
				return nil, fmt.Errorf("quser: update %s: %w", userID, err)
			}
		}
		return &existing, nil

	case err == store.ErrNotFound:
		u := User{
			Entity: types.NewEntity(),
			ID:     userID,
			Email:  email,
		}
		if err := m.store.Set(ctx, store.CollectionUsers, userID, &u, store.SetOptions{}); err != nil {
			return nil, fmt.Errorf("quser: create %s: %w", userID, err)
		}
		return &u, nil

	default:
		return nil, fmt.Errorf("quser: get %s: %w", userID, err)
	}
}

// Get loads the user record by id. Returns store.ErrNotFound if absent.
func (m *Manager) Get(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := m.store.Get(ctx, store.CollectionUsers, userID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
