package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"team-chat/internal/middleware"
	"team-chat/internal/presence"
)

// PresenceHandler exposes the one-shot online-users read model.
type PresenceHandler struct {
	tracker presence.Service
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(tracker presence.Service) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// ListOnline returns the currently online users.
func (h *PresenceHandler) ListOnline(c *gin.Context) {
	if _, ok := middleware.Viewer(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing viewer"})
		return
	}

	online, err := h.tracker.ListOnline(c.Request.Context())
	if err != nil {
		// Presence degrades to empty data rather than failing the call.
		online = nil
	}
	c.JSON(http.StatusOK, gin.H{"online": online})
}
