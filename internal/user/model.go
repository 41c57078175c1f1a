package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// User is the local record mirrored from the identity provider. Profile fields are nullable;
// nil is the "unknown" value written whenever the provider did not supply a field.
type User struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"clerkId"`
	Email      *string    `json:"email"`
	Username   *string    `json:"username"`
	FirstName  *string    `json:"firstName"`
	LastName   *string    `json:"lastName"`
	Photo      *string    `json:"photo"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the record is a tombstone.
func (u User) Deleted() bool {
	return u.DeletedAt != nil
}

// Profile carries the mutable fields replaced on create and update.
type Profile struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
	Photo     *string
}

// apply overwrites every profile field of u, including the ones that are nil.
func (p Profile) apply(u *User) {
	u.Email = p.Email
	u.Username = p.Username
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Photo = p.Photo
}

// Field normalises a provider value: blank or missing values become the nil sentinel.
func Field(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var (
	// ErrNotFound indicates no record exists for the external id.
	ErrNotFound = errors.New("user not found")
	// ErrDeleted indicates the external id was already deleted and must not be recreated.
	ErrDeleted = errors.New("user already deleted")
	// ErrInvalidInput indicates the provided data failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLinkFailed indicates the local record was stored but the identity provider write-back failed.
	ErrLinkFailed = errors.New("identity provider link failed")
)

// Repository persists users keyed by external id. Implementations must keep at most one
// record per external id and treat deletes as permanent tombstones.
type Repository interface {
	// Upsert creates the record or replaces its profile. newID is used only on insert.
	Upsert(ctx context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error)
	// Update replaces the profile of an existing record.
	Update(ctx context.Context, externalID string, profile Profile, at time.Time) (User, error)
	// Delete tombstones the record, creating the tombstone under newID if the id was never seen.
	Delete(ctx context.Context, externalID string, newID string, at time.Time) (User, error)
	GetByExternalID(ctx context.Context, externalID string) (User, error)
}

// Linker writes the local identifier back to the identity provider.
type Linker interface {
	LinkUser(ctx context.Context, externalID, localID string) error
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers for new local records.
type IDGenerator interface {
	NewID() string
}
