package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoUpsertAttempts = 3
	mongoDeleteAttempts = 3
)

type mongoUser struct {
	ID         string     `bson:"_id"`
	ExternalID string     `bson:"clerk_id"`
	Email      *string    `bson:"email"`
	Username   *string    `bson:"username"`
	FirstName  *string    `bson:"first_name"`
	LastName   *string    `bson:"last_name"`
	Photo      *string    `bson:"photo"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
	DeletedAt  *time.Time `bson:"deleted_at"`
}

func (d mongoUser) toUser() User {
	return User(d)
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository stores users in coll. Call EnsureMongoIndexes once before serving traffic.
func NewMongoRepository(coll *mongo.Collection) Repository {
	return &mongoRepository{coll: coll}
}

// EnsureMongoIndexes creates the unique external id index the repository relies on.
func EnsureMongoIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clerk_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("clerk_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create clerk_id index: %w", err)
	}
	return nil
}

func liveFilter(externalID string) bson.D {
	return bson.D{{Key: "clerk_id", Value: externalID}, {Key: "deleted_at", Value: nil}}
}

func profileSet(profile Profile, at time.Time) bson.D {
	return bson.D{
		{Key: "email", Value: profile.Email},
		{Key: "username", Value: profile.Username},
		{Key: "first_name", Value: profile.FirstName},
		{Key: "last_name", Value: profile.LastName},
		{Key: "photo", Value: profile.Photo},
		{Key: "updated_at", Value: at},
	}
}

func (r *mongoRepository) Upsert(ctx context.Context, externalID string, profile Profile, newID string, at time.Time) (User, bool, error) {
	update := bson.D{
		{Key: "$set", Value: profileSet(profile, at)},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: newID},
			{Key: "created_at", Value: at},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	for attempt := 0; attempt < mongoUpsertAttempts; attempt++ {
		var doc mongoUser
		err := r.coll.FindOneAndUpdate(ctx, liveFilter(externalID), update, opts).Decode(&doc)
		if err == nil {
			return doc.toUser(), doc.ID == newID, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return User{}, false, fmt.Errorf("upsert user: %w", err)
		}

		// The live filter missed and the insert collided on clerk_id: either a tombstone
		// or a record a concurrent create just inserted.
		existing, getErr := r.GetByExternalID(ctx, externalID)
		if errors.Is(getErr, ErrNotFound) {
			continue
		}
		if getErr != nil {
			return User{}, false, getErr
		}
		if existing.Deleted() {
			return User{}, false, ErrDeleted
		}
	}
	return User{}, false, fmt.Errorf("upsert user %s: too much contention", externalID)
}

func (r *mongoRepository) Update(ctx context.Context, externalID string, profile Profile, at time.Time) (User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoUser
	err := r.coll.FindOneAndUpdate(ctx, liveFilter(externalID), bson.D{{Key: "$set", Value: profileSet(profile, at)}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		existing, getErr := r.GetByExternalID(ctx, externalID)
		if getErr != nil {
			return User{}, getErr
		}
		if existing.Deleted() {
			return User{}, ErrDeleted
		}
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return doc.toUser(), nil
}

func (r *mongoRepository) Delete(ctx context.Context, externalID string, newID string, at time.Time) (User, error) {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	tombstone := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	for attempt := 0; attempt < mongoDeleteAttempts; attempt++ {
		var doc mongoUser
		err := r.coll.FindOneAndUpdate(ctx, liveFilter(externalID), bson.D{{Key: "$set", Value: bson.D{
			{Key: "deleted_at", Value: at},
			{Key: "updated_at", Value: at},
		}}}, after).Decode(&doc)
		if err == nil {
			return doc.toUser(), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, fmt.Errorf("delete user: %w", err)
		}

		// No live record: return the existing tombstone or write one for an id we have never seen.
		err = r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "clerk_id", Value: externalID}}, bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: newID},
			{Key: "email", Value: nil},
			{Key: "username", Value: nil},
			{Key: "first_name", Value: nil},
			{Key: "last_name", Value: nil},
			{Key: "photo", Value: nil},
			{Key: "created_at", Value: at},
			{Key: "updated_at", Value: at},
			{Key: "deleted_at", Value: at},
		}}}, tombstone).Decode(&doc)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return User{}, fmt.Errorf("tombstone user: %w", err)
		}
		if doc.DeletedAt != nil {
			return doc.toUser(), nil
		}
		// A concurrent create slipped in between the two calls; delete it on the next pass.
	}
	return User{}, fmt.Errorf("delete user %s: too much contention", externalID)
}

func (r *mongoRepository) GetByExternalID(ctx context.Context, externalID string) (User, error) {
	var doc mongoUser
	err := r.coll.FindOne(ctx, bson.D{{Key: "clerk_id", Value: externalID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return doc.toUser(), nil
}
