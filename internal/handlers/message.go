package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"team-chat/internal/directory"
	"team-chat/internal/messages"
	"team-chat/internal/middleware"
	"team-chat/internal/models"
)

// MessageHandler manages the message endpoints of one channel.
type MessageHandler struct {
	stream    messages.Service
	directory directory.Provider
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(stream messages.Service, provider directory.Provider) *MessageHandler {
	return &MessageHandler{stream: stream, directory: provider}
}

// GetChannelMessages returns the bounded message window filtered for the
// viewer.
func (h *MessageHandler) GetChannelMessages(c *gin.Context) {
	viewer, channel, ok := resolveChannel(c, h.directory)
	if !ok {
		return
	}

	window, err := h.stream.History(c.Request.Context(), channel.ID, viewer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": window})
}

// PostChannelMessage appends a message to the channel.
func (h *MessageHandler) PostChannelMessage(c *gin.Context) {
	viewer, channel, ok := resolveChannel(c, h.directory)
	if !ok {
		return
	}

	var req struct {
		Text     string `json:"text"`
		Type     string `json:"type"`
		ImageURL string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.stream.Send(c.Request.Context(), channel, viewer, req.Text, req.Type, req.ImageURL)
	if err != nil {
		if errors.Is(err, messages.ErrEmptyMessage) || errors.Is(err, messages.ErrInvalidKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage soft-deletes for the viewer (scope=me, the default) or
// unsends for everyone (scope=all).
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	viewer, channel, ok := resolveChannel(c, h.directory)
	if !ok {
		return
	}
	messageID := c.Param("message_id")
	forEveryone := c.DefaultQuery("scope", "me") == "all"

	err := h.stream.Delete(c.Request.Context(), channel.ID, messageID, viewer.ID, forEveryone)
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, messages.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only sender can delete for all"})
		case errors.Is(err, messages.ErrUnsendWindow):
			c.JSON(http.StatusForbidden, gin.H{"error": "unsend window has passed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveChannel loads the channel named by the route and checks the viewer
// may see it; on failure the response is already written.
func resolveChannel(c *gin.Context, provider directory.Provider) (models.User, models.Channel, bool) {
	viewer, ok := middleware.Viewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing viewer"})
		return models.User{}, models.Channel{}, false
	}
	channelID := c.Param("channel_id")

	channel, err := provider.Get(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, directory.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return models.User{}, models.Channel{}, false
	}
	if !channel.VisibleTo(viewer.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a channel member"})
		return models.User{}, models.Channel{}, false
	}
	return viewer, channel, true
}
