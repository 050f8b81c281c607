package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	"github.com/duynhne/user-crud-service/internal/core/repository/memory"
	logicv1 "github.com/duynhne/user-crud-service/internal/logic/v1"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	svc := logicv1.NewUserService(memory.NewStore[domain.User]("users"))
	r := gin.New()
	NewUserHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func create(t *testing.T, r http.Handler, name, email string) domain.User {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/users", `{"name":"`+name+`","email":"`+email+`","password":"p"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.User](t, w)
}

func TestCreateUser(t *testing.T) {
	r := newRouter()

	w := do(t, r, http.MethodPost, "/api/v1/users", `{"name":"Ann","email":"a@x","password":"p"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	user := decode[domain.User](t, w)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "a@x", user.Email)
	assert.Equal(t, "p", user.Password)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing fields", body: `{"name":"Ann"}`, want: "invalid request: missing email, password"},
		{name: "malformed json", body: `{"name":`, want: ""},
		{name: "wrong type", body: `{"name":1,"email":"e","password":"p"}`, want: "Invalid request"},
		{name: "empty body", body: "", want: "Invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, decode[map[string]string](t, w)["error"])
			}
		})
	}
}

func TestSearchUsers(t *testing.T) {
	r := newRouter()
	ann := create(t, r, "Ann", "a@x")
	bob := create(t, r, "Bob", "b@x")
	amy := create(t, r, "Ann", "amy@x")

	tests := []struct {
		name  string
		query string
		want  []domain.User
	}{
		{name: "all", query: "", want: []domain.User{ann, bob, amy}},
		{name: "by name", query: "?name=Ann", want: []domain.User{ann, amy}},
		{name: "by name and email", query: "?name=Ann&email=amy@x", want: []domain.User{amy}},
		{name: "by id", query: "?id=" + bob.ID, want: []domain.User{bob}},
		{name: "sorted", query: "?sort=name,-email", want: []domain.User{amy, ann, bob}},
		{name: "no match is an empty array", query: "?email=none", want: []domain.User{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/api/v1/users"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decode[[]domain.User](t, w))
		})
	}

	w := do(t, r, http.MethodGet, "/api/v1/users?sort=password", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser(t *testing.T) {
	r := newRouter()
	ann := create(t, r, "Ann", "a@x")

	w := do(t, r, http.MethodGet, "/api/v1/users/"+ann.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ann, decode[domain.User](t, w))

	w = do(t, r, http.MethodGet, "/api/v1/users/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode[map[string]string](t, w)["error"])
}

func TestUpdateUser(t *testing.T) {
	r := newRouter()
	ann := create(t, r, "Ann", "a@x")

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			w := do(t, r, method, "/api/v1/users/"+ann.ID, `{"email":"`+method+`@x"}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			got := decode[domain.User](t, w)
			assert.Equal(t, domain.User{ID: ann.ID, Name: "Ann", Email: method + "@x", Password: "p"}, got)
		})
	}

	t.Run("id in body is ignored", func(t *testing.T) {
		w := do(t, r, http.MethodPatch, "/api/v1/users/"+ann.ID, `{"id":"other","name":"Anna"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ann.ID, decode[domain.User](t, w).ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/users/missing", `{"name":"X"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/users/"+ann.ID, `[]`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteUser(t *testing.T) {
	r := newRouter()
	ann := create(t, r, "Ann", "a@x")

	w := do(t, r, http.MethodDelete, "/api/v1/users/"+ann.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ann, decode[domain.User](t, w))

	w = do(t, r, http.MethodGet, "/api/v1/users/"+ann.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/users/"+ann.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingStore fails every insert with err and otherwise behaves like the
// memory store.
type failingStore struct {
	*memory.Store[domain.User]
	err error
}

func (s failingStore) Insert(context.Context, domain.User) (*domain.InsertResult, error) {
	return nil, s.err
}

func TestCreateUser_StoreFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "duplicate key",
			err:      mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}},
			wantCode: http.StatusConflict,
			wantMsg:  "User already exists",
		},
		{
			name:     "server error is not leaked",
			err:      errors.New("connection refused 10.0.0.5:27017"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := logicv1.NewUserService(failingStore{Store: memory.NewStore[domain.User]("users"), err: tt.err})
			r := gin.New()
			NewUserHandler(svc).RegisterRoutes(r)

			w := do(t, r, http.MethodPost, "/users", `{"name":"Ann","email":"a@x","password":"p"}`)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestParseSort(t *testing.T) {
	got, err := parseSort("name, -id")
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: -1}}, got)

	for _, raw := range []string{"age", "name,name", "-", "name,"} {
		_, err := parseSort(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, raw)
	}
}
