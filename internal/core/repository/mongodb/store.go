// Package mongodb implements domain.Store on top of a MongoDB collection.
package mongodb

import (
	"context"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ domain.Store[domain.User] = (*Store[domain.User])(nil)

// Store forwards each call to one collection and decodes results as T.
// Driver errors are returned as is.
type Store[T any] struct {
	collection *mongo.Collection
}

// NewStore binds a Store to collection. The collection handle is safe for
// concurrent use, so one Store can serve every request.
func NewStore[T any](collection *mongo.Collection) *Store[T] {
	return &Store[T]{collection: collection}
}

// Insert persists entity with InsertOne.
func (s *Store[T]) Insert(ctx context.Context, entity T) (*domain.InsertResult, error) {
	res, err := s.collection.InsertOne(ctx, entity)
	if err != nil {
		return nil, err
	}
	return &domain.InsertResult{InsertedID: res.InsertedID}, nil
}

// Update applies update to the first document matching filter.
func (s *Store[T]) Update(ctx context.Context, filter, update bson.M) (*domain.UpdateResult, error) {
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	return &domain.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// Delete removes the first document matching filter.
func (s *Store[T]) Delete(ctx context.Context, filter bson.M) (*domain.DeleteResult, error) {
	res, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &domain.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// Find drains the cursor for filter. A decode failure on any document fails
// the whole call.
func (s *Store[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := s.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

// Aggregate runs pipeline and returns the documents without decoding them as T.
func (s *Store[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]bson.M, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = make([]bson.M, 0)
	}
	return docs, nil
}
