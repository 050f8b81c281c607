package domain

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertResult reports the identifier the store recorded for an inserted document.
type InsertResult struct {
	InsertedID any
}

// UpdateResult reports how many documents an update matched and changed.
// Zero matches is not an error.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteResult reports how many documents a delete removed. Zero is not an error.
type DeleteResult struct {
	DeletedCount int64
}

// Store is the data access contract for one entity type bound to one collection.
// Implementations return store failures unchanged and keep no per-call state,
// so a Store may be shared by concurrent callers.
type Store[T any] interface {
	// Insert persists one fully populated entity, including its identifier.
	Insert(ctx context.Context, entity T) (*InsertResult, error)
	// Update applies update to the first document matching filter.
	Update(ctx context.Context, filter, update bson.M) (*UpdateResult, error)
	// Delete removes the first document matching filter.
	Delete(ctx context.Context, filter bson.M) (*DeleteResult, error)
	// Find returns every document matching filter decoded as T.
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error)
	// Aggregate runs pipeline and returns the raw result documents.
	Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error)
}
