package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"team-chat/internal/directory"
	"team-chat/internal/typing"
)

// TypingHandler publishes typing signals.
type TypingHandler struct {
	bus       typing.Signaler
	directory directory.Provider
}

// NewTypingHandler builds a TypingHandler.
func NewTypingHandler(bus typing.Signaler, provider directory.Provider) *TypingHandler {
	return &TypingHandler{bus: bus, directory: provider}
}

// SetTyping writes or clears the viewer's typing marker for the channel.
func (h *TypingHandler) SetTyping(c *gin.Context) {
	viewer, channel, ok := resolveChannel(c, h.directory)
	if !ok {
		return
	}

	var req struct {
		Typing bool `json:"typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.bus.SetTyping(c.Request.Context(), channel.ID, viewer, req.Typing); err != nil {
		// Typing is best-effort; a failed marker write only costs the
		// signal itself.
		c.Status(http.StatusAccepted)
		return
	}
	c.Status(http.StatusNoContent)
}
