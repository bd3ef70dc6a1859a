package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
)

// ActivityRequest is a storefront interaction reported by the browser.
// The server assigns the id and timestamp.
type ActivityRequest struct {
	Type      activity.Type    `json:"type" validate:"required"`
	SessionID string           `json:"session_id" validate:"max=128"`
	Payload   activity.Payload `json:"payload"`
}

// RecordActivity appends a client interaction to the activity log.
func (h *Handler) RecordActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type.EngineOnly() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%q events are recorded by the resolution engine", req.Type)})
		return
	}

	e, err := h.Recorder.Append(c.Request.Context(), activity.Event{
		Type:      req.Type,
		SessionID: req.SessionID,
		Payload:   req.Payload,
	})
	if errors.Is(err, activity.ErrInvalidType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.Logger.Warn("activity append failed", "type", req.Type, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, e)
}
