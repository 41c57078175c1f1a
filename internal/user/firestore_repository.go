package user

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the collection/table name used when none is configured.
const DefaultCollection = "users"

// Concurrent deliveries for one external id contend on the same document.
const firestoreTxAttempts = 10

// firestoreUser is the persisted document. The document ID is the external id, which
// gives the one-record-per-external-id guarantee for free.
type firestoreUser struct {
	ID         string     `firestore:"id"`
	ExternalID string     `firestore:"clerk_id"`
	Email      *string    `firestore:"email"`
	Username   *string    `firestore:"username"`
	FirstName  *string    `firestore:"first_name"`
	LastName   *string    `firestore:"last_name"`
	Photo      *string    `firestore:"photo"`
	CreatedAt  time.Time  `firestore:"created_at"`
	UpdatedAt  time.Time  `firestore:"updated_at"`
	DeletedAt  *time.Time `firestore:"deleted_at"`
}

func (d firestoreUser) toUser() User {
	return User(d)
}

func toFirestoreUser(u User) firestoreUser {
	return firestoreUser(u)
}

type firestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository creates a new Firestore repository
func NewFirestoreRepository(client *firestore.Client, collection string) Repository {
	if collection == "" {
		collection = DefaultCollection
	}
	return &firestoreRepository{client: client, collection: collection}
}

func (r *firestoreRepository) doc(externalID string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(externalID)
}

func (r *firestoreRepository) Upsert(ctx context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error) {
	ref := r.doc(externalID)

	var (
		out     User
		created bool
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		u, err := r.load(tx, ref)
		switch {
		case status.Code(err) == codes.NotFound:
			u = User{ID: newID, ExternalID: externalID, CreatedAt: at}
			created = true
		case err != nil:
			return err
		case u.Deleted():
			return ErrDeleted
		}

		profile.apply(&u)
		u.UpdatedAt = at
		out = u
		return tx.Set(ref, toFirestoreUser(u))
	}, firestore.MaxAttempts(firestoreTxAttempts))
	if err != nil {
		return User{}, false, err
	}
	return out, created, nil
}

func (r *firestoreRepository) Update(ctx context.Context, externalID string, profile Profile, at time.Time) (User, error) {
	ref := r.doc(externalID)

	var out User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		u, err := r.load(tx, ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if u.Deleted() {
			return ErrDeleted
		}

		profile.apply(&u)
		u.UpdatedAt = at
		out = u
		return tx.Set(ref, toFirestoreUser(u))
	}, firestore.MaxAttempts(firestoreTxAttempts))
	if err != nil {
		return User{}, err
	}
	return out, nil
}

func (r *firestoreRepository) Delete(ctx context.Context, externalID string, newID string, at time.Time) (User, error) {
	ref := r.doc(externalID)

	var out User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		u, err := r.load(tx, ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// Tombstone ids we have never seen so a late user.created cannot resurrect them.
			u = User{ID: newID, ExternalID: externalID, CreatedAt: at}
		case err != nil:
			return err
		case u.Deleted():
			out = u
			return nil
		}

		deletedAt := at
		u.DeletedAt = &deletedAt
		u.UpdatedAt = at
		out = u
		return tx.Set(ref, toFirestoreUser(u))
	}, firestore.MaxAttempts(firestoreTxAttempts))
	if err != nil {
		return User{}, err
	}
	return out, nil
}

func (r *firestoreRepository) GetByExternalID(ctx context.Context, externalID string) (User, error) {
	snap, err := r.doc(externalID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	var doc firestoreUser
	if err := snap.DataTo(&doc); err != nil {
		return User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return doc.toUser(), nil
}

func (r *firestoreRepository) load(tx *firestore.Transaction, ref *firestore.DocumentRef) (User, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		return User{}, err
	}
	var doc firestoreUser
	if err := snap.DataTo(&doc); err != nil {
		return User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return doc.toUser(), nil
}
