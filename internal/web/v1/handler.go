package v1

import (
	"errors"
	"net/http"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	logicv1 "github.com/duynhne/user-crud-service/internal/logic/v1"
	"github.com/duynhne/user-crud-service/middleware"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	service *logicv1.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *logicv1.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterRoutes mounts the user routes under r, typically the /api/v1 group.
func (h *UserHandler) RegisterRoutes(r gin.IRouter) {
	users := r.Group("/users")
	users.POST("", h.CreateUser)
	users.GET("", h.SearchUsers)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.PATCH("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)
}

// startRequest opens the web-layer span and returns the request logger.
func startRequest(c *gin.Context) (trace.Span, *zap.Logger) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.FullPath()),
	))
	c.Request = c.Request.WithContext(ctx)
	return span, middleware.GetLoggerFromGinContext(c)
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	span, logger := startRequest(c)
	defer span.End()

	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		writeError(c, span, logger, "Failed to create user", err)
		return
	}

	logger.Info("User created", zap.String("user_id", user.ID))
	c.JSON(http.StatusCreated, user)
}

// SearchUsers handles GET /api/v1/users?name=&email=&id=&sort=
func (h *UserHandler) SearchUsers(c *gin.Context) {
	span, logger := startRequest(c)
	defer span.End()

	var req domain.SearchUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}

	var opts []*options.FindOptions
	if raw := c.Query("sort"); raw != "" {
		sort, err := parseSort(raw)
		if err != nil {
			badRequest(c, span, logger, err)
			return
		}
		opts = append(opts, options.Find().SetSort(sort))
	}

	users, err := h.service.SearchUsers(c.Request.Context(), req, opts...)
	if err != nil {
		writeError(c, span, logger, "Failed to search users", err)
		return
	}

	logger.Info("Users searched", zap.Int("count", len(users)))
	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	span, logger := startRequest(c)
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("user.id", id))

	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, span, logger, "Failed to get user", err)
		return
	}

	logger.Info("User retrieved", zap.String("user_id", id))
	c.JSON(http.StatusOK, user)
}

// UpdateUser handles PUT and PATCH /api/v1/users/:id. Both only overwrite
// the fields present in the body.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	span, logger := startRequest(c)
	defer span.End()

	var req domain.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, span, logger, err)
		return
	}
	req.ID = c.Param("id")
	span.SetAttributes(attribute.String("user.id", req.ID))

	user, err := h.service.UpdateUser(c.Request.Context(), req)
	if err != nil {
		writeError(c, span, logger, "Failed to update user", err)
		return
	}

	logger.Info("User updated", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/:id and responds with the removed user.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	span, logger := startRequest(c)
	defer span.End()

	req := domain.DeleteUserRequest{ID: c.Param("id")}
	span.SetAttributes(attribute.String("user.id", req.ID))

	user, err := h.service.DeleteUser(c.Request.Context(), req)
	if err != nil {
		writeError(c, span, logger, "Failed to delete user", err)
		return
	}

	logger.Info("User deleted", zap.String("user_id", user.ID))
	c.JSON(http.StatusOK, user)
}

func badRequest(c *gin.Context, span trace.Span, logger *zap.Logger, err error) {
	span.SetAttributes(attribute.Bool("request.valid", false))
	span.RecordError(err)
	logger.Warn("Invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
}

// writeError maps service errors to HTTP statuses. Unknown errors are
// reported as 500 without their message.
func writeError(c *gin.Context, span trace.Span, logger *zap.Logger, msg string, err error) {
	span.RecordError(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": sanitizeValidationError(err)})
	case errors.Is(err, domain.ErrUserNotFound):
		logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, domain.ErrUserExists):
		logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
	default:
		logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
