package v1

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	"github.com/duynhne/user-crud-service/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService implements the user use cases on top of a document store.
// It holds no mutable state and is safe for concurrent use.
type UserService struct {
	store    domain.Store[domain.User]
	validate *validator.Validate
	newID    func() string
}

// NewUserService creates a new user service
func NewUserService(store domain.Store[domain.User]) *UserService {
	return &UserService{
		store:    store,
		validate: validator.New(),
		newID:    uuid.NewString,
	}
}

// CreateUser stores a new user with a freshly generated id. The returned
// user is the one that was inserted, not a re-read.
func (s *UserService) CreateUser(ctx context.Context, req domain.CreateUserRequest) (user *domain.User, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.create", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()
	defer func() { observe(ctx, "create", err) }()

	if err = s.checkRequired(req); err != nil {
		return nil, err
	}

	user = &domain.User{
		ID:       s.newID(),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	if _, err = s.store.Insert(ctx, *user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert user %q: %w: %w", user.ID, domain.ErrUserExists, err)
		}
		return nil, fmt.Errorf("insert user %q: %w", user.ID, err)
	}

	span.AddEvent("user.created")
	return user, nil
}

// SearchUsers returns every user equal to the set fields of req. An empty
// request returns all users.
func (s *UserService) SearchUsers(ctx context.Context, req domain.SearchUsersRequest, opts ...*options.FindOptions) (users []domain.User, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.search", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()
	defer func() { observe(ctx, "search", err) }()

	filter := searchFilter(req)
	span.SetAttributes(attribute.Int("filter.fields", len(filter)))

	users, err = s.store.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	span.SetAttributes(attribute.Int("users.found", len(users)))
	return users, nil
}

// GetUser returns the user with the given id.
func (s *UserService) GetUser(ctx context.Context, id string) (user *domain.User, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.get", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", id),
	))
	defer span.End()
	defer func() { observe(ctx, "get", err) }()

	if id == "" {
		return nil, fmt.Errorf("%w: missing id", domain.ErrInvalidRequest)
	}

	return s.findOne(ctx, idFilter(id), "get user")
}

// UpdateUser writes the set fields of req to the user with req.ID and returns
// the stored result. Unset fields keep their value. The update and the
// re-read are separate round-trips.
func (s *UserService) UpdateUser(ctx context.Context, req domain.UpdateUserRequest) (user *domain.User, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.update", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", req.ID),
	))
	defer span.End()
	defer func() { observe(ctx, "update", err) }()

	if err = s.checkRequired(req); err != nil {
		return nil, err
	}

	filter := idFilter(req.ID)
	set := updateFields(req)
	span.SetAttributes(attribute.Int("update.fields", len(set)))

	// MongoDB rejects an empty $set; with nothing to write only re-read.
	if len(set) > 0 {
		res, err := s.store.Update(ctx, filter, bson.M{"$set": set})
		if err != nil {
			return nil, fmt.Errorf("update user %q: %w", req.ID, err)
		}
		span.SetAttributes(
			attribute.Int64("update.matched", res.MatchedCount),
			attribute.Int64("update.modified", res.ModifiedCount),
		)
	}

	return s.findOne(ctx, filter, "update user")
}

// DeleteUser removes the user with req.ID and returns the record as it was
// read just before deletion.
func (s *UserService) DeleteUser(ctx context.Context, req domain.DeleteUserRequest) (user *domain.User, err error) {
	ctx, span := middleware.StartSpan(ctx, "user.delete", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", req.ID),
	))
	defer span.End()
	defer func() { observe(ctx, "delete", err) }()

	if err = s.checkRequired(req); err != nil {
		return nil, err
	}

	filter := idFilter(req.ID)
	user, err = s.findOne(ctx, filter, "delete user")
	if err != nil {
		return nil, err
	}

	res, err := s.store.Delete(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete user %q: %w", req.ID, err)
	}
	// Removed by someone else between the read and the delete.
	if res.DeletedCount == 0 {
		return nil, fmt.Errorf("delete user %q: %w", req.ID, domain.ErrUserNotFound)
	}

	span.AddEvent("user.deleted")
	return user, nil
}

// findOne returns the first match of filter or ErrUserNotFound.
func (s *UserService) findOne(ctx context.Context, filter bson.M, action string) (*domain.User, error) {
	users, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", action, filter["_id"], err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%s %q: %w", action, filter["_id"], domain.ErrUserNotFound)
	}
	return &users[0], nil
}

// checkRequired reports the missing required fields of req as ErrInvalidRequest.
func (s *UserService) checkRequired(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: missing %s", domain.ErrInvalidRequest, strings.Join(missing, ", "))
}

// observe records the outcome of one use case on the current span and in
// the operation counter.
func observe(ctx context.Context, operation string, err error) {
	if err != nil {
		middleware.RecordError(ctx, err)
	}
	middleware.RecordUserOperation(operation, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUserExists):
		return "conflict"
	default:
		return "error"
	}
}
