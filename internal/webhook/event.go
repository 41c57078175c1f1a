package webhook

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrInvalidPayload indicates the verified body is not a JSON event envelope.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrMissingUserID indicates data.id was absent or blank.
	ErrMissingUserID = errors.New("missing user id")
)

// Kind classifies the event types this service consumes.
type Kind int

const (
	KindUnhandled Kind = iota
	KindUserCreated
	KindUserUpdated
	KindUserDeleted
)

func (k Kind) String() string {
	switch k {
	case KindUserCreated:
		return "user.created"
	case KindUserUpdated:
		return "user.updated"
	case KindUserDeleted:
		return "user.deleted"
	default:
		return "unhandled"
	}
}

// Event is the Clerk webhook envelope.
type Event struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// Kind maps the envelope type onto a Kind.
func (e Event) Kind() Kind {
	switch e.Type {
	case "user.created":
		return KindUserCreated
	case "user.updated":
		return KindUserUpdated
	case "user.deleted":
		return KindUserDeleted
	default:
		return KindUnhandled
	}
}

// EmailAddress is one entry of a Clerk user's email_addresses list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the subset of the Clerk user object the sync cares about.
type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	ImageURL              *string        `json:"image_url"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	Username              *string        `json:"username"`
}

// PrimaryEmail returns the primary email address, falling back to the first one listed.
func (d UserData) PrimaryEmail() *string {
	if len(d.EmailAddresses) == 0 {
		return nil
	}
	if d.PrimaryEmailAddressID != nil {
		for _, addr := range d.EmailAddresses {
			if addr.ID == *d.PrimaryEmailAddressID {
				email := addr.EmailAddress
				return &email
			}
		}
	}
	email := d.EmailAddresses[0].EmailAddress
	return &email
}

// DecodeEvent parses a verified request body.
func DecodeEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, ErrInvalidPayload
	}
	event.Data.ID = strings.TrimSpace(event.Data.ID)
	if event.Data.ID == "" {
		return Event{}, ErrMissingUserID
	}
	return event, nil
}
