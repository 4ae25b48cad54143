package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/middleware"
	"github.com/cartalks/backend/internal/models"
)

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondError maps an error to its HTTP status. Details of server-side
// failures stay out of the response.
func respondError(c *gin.Context, err error) {
	code := apperror.CodeOf(err)
	status := apperror.HTTPStatus(code)

	var appErr *apperror.AppError
	if status >= http.StatusInternalServerError || !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "Internal server error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": appErr.Message, "code": code})
}

// CurrentUser is the session user as established by the auth middleware.
type CurrentUser struct {
	ID           uuid.UUID
	LicensePlate string
	Username     string
	Role         string
}

func currentUser(c *gin.Context) (CurrentUser, bool) {
	v, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return CurrentUser{}, false
	}
	uid, ok := v.(uuid.UUID)
	if !ok {
		return CurrentUser{}, false
	}
	return CurrentUser{
		ID:           uid,
		LicensePlate: c.GetString(middleware.ContextLicensePlate),
		Username:     c.GetString(middleware.ContextUsername),
		Role:         c.GetString(middleware.ContextRole),
	}, true
}

// actingAs checks that id names the session user and writes the error
// response when it does not.
func actingAs(c *gin.Context, id string) (CurrentUser, bool) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, apperror.ErrUnauthenticated)
		return CurrentUser{}, false
	}
	if identity.Normalize(id) != user.LicensePlate {
		respondError(c, apperror.Forbidden("cannot act for another participant"))
		return CurrentUser{}, false
	}
	return user, true
}

// participantOf checks that the session user is a side of key. Admins may
// look at any conversation.
func participantOf(c *gin.Context, key string, allowAdmin bool) bool {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, apperror.ErrUnauthenticated)
		return false
	}
	if _, _, err := identity.SplitKey(key); err != nil {
		respondError(c, err)
		return false
	}
	if allowAdmin && user.Role == models.RoleAdmin {
		return true
	}
	if !identity.IsParticipant(key, user.LicensePlate) {
		respondError(c, apperror.ErrForbidden)
		return false
	}
	return true
}
