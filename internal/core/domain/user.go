package domain

// User is the persisted user document. ID doubles as the collection's _id.
type User struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Email    string `json:"email" bson:"email"`
	Password string `json:"password" bson:"password"`
}

// CreateUserRequest carries the fields of a new user. All are required.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SearchUsersRequest selects users by equality on every field that is set.
// A request with no fields set matches all users.
type SearchUsersRequest struct {
	ID    *string `json:"id,omitempty" form:"id"`
	Name  *string `json:"name,omitempty" form:"name"`
	Email *string `json:"email,omitempty" form:"email"`
}

// UpdateUserRequest overwrites the set fields of the user identified by ID.
// Nil fields keep their stored value.
type UpdateUserRequest struct {
	ID       string  `json:"-" validate:"required"`
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type DeleteUserRequest struct {
	ID string `json:"-" validate:"required"`
}
