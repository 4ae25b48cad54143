package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/models"
)

type SafetyGate interface {
	Block(ctx context.Context, blockerID, blockedID string) (*models.Block, error)
	ListBlocked(ctx context.Context, blockerID string) ([]string, error)
	Report(ctx context.Context, reporterID, reportedID, reason, reportType string) (*models.Report, error)
}

type SafetyHandler struct {
	gate SafetyGate
}

func NewSafetyHandler(gate SafetyGate) *SafetyHandler {
	return &SafetyHandler{gate: gate}
}

// Post dispatches on the action query parameter: block or report
func (h *SafetyHandler) Post(c *gin.Context) {
	switch c.Query("action") {
	case "block":
		h.block(c)
	case "report":
		h.report(c)
	default:
		respondError(c, apperror.InvalidArg("unknown action"))
	}
}

// Get dispatches on the action query parameter: listBlocks
func (h *SafetyHandler) Get(c *gin.Context) {
	switch c.Query("action") {
	case "listBlocks":
		h.listBlocks(c)
	default:
		respondError(c, apperror.InvalidArg("unknown action"))
	}
}

func (h *SafetyHandler) block(c *gin.Context) {
	var req models.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := actingAs(c, req.BlockerID)
	if !ok {
		return
	}

	block, err := h.gate.Block(c.Request.Context(), user.LicensePlate, req.BlockedID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, block)
}

func (h *SafetyHandler) report(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := actingAs(c, req.ReporterID)
	if !ok {
		return
	}

	report, err := h.gate.Report(c.Request.Context(), user.LicensePlate, req.ReportedID, req.Reason, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *SafetyHandler) listBlocks(c *gin.Context) {
	user, ok := actingAs(c, c.Query("blockerId"))
	if !ok {
		return
	}

	ids, err := h.gate.ListBlocked(c.Request.Context(), user.LicensePlate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ids)
}
