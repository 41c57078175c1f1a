package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service applies identity provider lifecycle events to the local user store.
type Service struct {
	repo   Repository
	linker Linker
	clock  Clock
	ids    IDGenerator
}

// NewService constructs a Service instance with the provided collaborators.
// linker may be nil, in which case no write-back is attempted.
func NewService(repo Repository, linker Linker, clock Clock, ids IDGenerator) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	return &Service{repo: repo, linker: linker, clock: clock, ids: ids}, nil
}

// Create stores the user for externalID and links the local id back to the identity provider.
// Repeated calls for the same externalID converge on a single record.
//
// When the write-back fails the stored record is still returned, together with an error
// wrapping ErrLinkFailed.
func (s *Service) Create(ctx context.Context, externalID string, profile Profile) (User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return User{}, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}

	u, _, err := s.repo.Upsert(ctx, externalID, profile, s.ids.NewID(), s.clock.Now().UTC())
	if err != nil {
		return User{}, err
	}

	if s.linker == nil {
		return u, nil
	}
	if err := s.linker.LinkUser(ctx, externalID, u.ID); err != nil {
		return u, fmt.Errorf("%w: %w", ErrLinkFailed, err)
	}
	return u, nil
}

// Update replaces every profile field of the record for externalID.
func (s *Service) Update(ctx context.Context, externalID string, profile Profile) (User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return User{}, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}
	return s.repo.Update(ctx, externalID, profile, s.clock.Now().UTC())
}

// Delete tombstones the record for externalID.
func (s *Service) Delete(ctx context.Context, externalID string) (User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return User{}, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}
	return s.repo.Delete(ctx, externalID, s.ids.NewID(), s.clock.Now().UTC())
}
