package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// UserDirectory finds people to start a conversation with
type UserDirectory interface {
	SearchByPlate(ctx context.Context, q string, limit int) ([]models.PlateMatch, error)
}

type UserHandler struct {
	users UserDirectory
}

func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// SearchUsers looks up registered plates containing q. Dashes, spaces and
// case in q are ignored.
func (h *UserHandler) SearchUsers(c *gin.Context) {
	var req models.SearchUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	q, err := identity.Validate(req.Query)
	if err != nil {
		respondError(c, err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	matches, err := h.users.SearchByPlate(c.Request.Context(), q, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, matches)
}
