package user

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	store map[string]User // externalID -> User
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		store: make(map[string]User),
	}
}

func (r *memoryRepository) Upsert(_ context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.store[externalID]
	if ok && existing.Deleted() {
		return User{}, false, ErrDeleted
	}

	created := !ok
	if created {
		existing = User{ID: newID, ExternalID: externalID, CreatedAt: at}
	}
	profile.apply(&existing)
	existing.UpdatedAt = at
	r.store[externalID] = existing

	return existing, created, nil
}

func (r *memoryRepository) Update(_ context.Context, externalID string, profile Profile, at time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.store[externalID]
	if !ok {
		return User{}, ErrNotFound
	}
	if existing.Deleted() {
		return User{}, ErrDeleted
	}

	profile.apply(&existing)
	existing.UpdatedAt = at
	r.store[externalID] = existing

	return existing, nil
}

func (r *memoryRepository) Delete(_ context.Context, externalID string, newID string, at time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.store[externalID]
	if ok && existing.Deleted() {
		return existing, nil
	}
	if !ok {
		existing = User{ID: newID, ExternalID: externalID, CreatedAt: at}
	}

	deletedAt := at
	existing.DeletedAt = &deletedAt
	existing.UpdatedAt = at
	r.store[externalID] = existing

	return existing, nil
}

func (r *memoryRepository) GetByExternalID(_ context.Context, externalID string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.store[externalID]
	if !ok {
		return User{}, ErrNotFound
	}
	return existing, nil
}
