package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/auth"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

// UserStore is the user directory
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByPlate(ctx context.Context, plate string) (*models.User, error)
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error
}

type AuthHandler struct {
	users      UserStore
	jwtService *auth.JWTService
}

func NewAuthHandler(users UserStore, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		LicensePlate: identity.Normalize(req.LicensePlate),
		Username:     strings.TrimSpace(req.Username),
		Role:         models.RoleUser,
	}
	if err := user.Validate(); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	// Hash password
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	user.PasswordHash = hashedPassword

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByPlate(c.Request.Context(), identity.Normalize(req.LicensePlate))
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.jwtService.GenerateToken(user.ID, user.LicensePlate, user.Username, user.Role)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(status, models.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(c *gin.Context) {
	current, ok := currentUser(c)
	if !ok {
		respondError(c, apperror.ErrUnauthenticated)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), current.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdatePushToken registers the device token push notifications go to
func (h *AuthHandler) UpdatePushToken(c *gin.Context) {
	var req models.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	current, ok := currentUser(c)
	if !ok {
		respondError(c, apperror.ErrUnauthenticated)
		return
	}

	if err := h.users.UpdatePushToken(c.Request.Context(), current.ID, req.PushToken); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
