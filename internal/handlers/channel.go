package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"team-chat/internal/channels"
	"team-chat/internal/directory"
	"team-chat/internal/middleware"
)

// ChannelHandler manages channel directory and lifecycle endpoints.
type ChannelHandler struct {
	lifecycle channels.Manager
	directory directory.Provider
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(lifecycle channels.Manager, provider directory.Provider) *ChannelHandler {
	return &ChannelHandler{lifecycle: lifecycle, directory: provider}
}

// ListChannels returns the channels visible to the authenticated viewer.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	viewer, ok := middleware.Viewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing viewer"})
		return
	}

	visible, err := h.directory.Visible(c.Request.Context(), viewer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load channels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": visible})
}

// CreateChannel creates a channel. DM creation is idempotent per unordered
// member pair; public channels are never deduplicated.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	if _, ok := middleware.Viewer(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing viewer"})
		return
	}

	var req struct {
		Name        string   `json:"name" binding:"required"`
		Kind        string   `json:"kind" binding:"required"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.lifecycle.CreateChannel(c.Request.Context(), req.Name, req.Kind, req.Description, req.Members)
	if err != nil {
		if errors.Is(err, channels.ErrInvalidMembership) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create channel"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel_id": id})
}

// DeleteChannel removes a channel and its dependent message and typing
// collections.
func (h *ChannelHandler) DeleteChannel(c *gin.Context) {
	viewer, ok := middleware.Viewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing viewer"})
		return
	}
	channelID := c.Param("channel_id")

	channel, err := h.directory.Get(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, directory.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return
	}
	if !channel.VisibleTo(viewer.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a channel member"})
		return
	}

	if err := h.lifecycle.DeleteChannel(c.Request.Context(), channelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete channel"})
		return
	}
	c.Status(http.StatusNoContent)
}
