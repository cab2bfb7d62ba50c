package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"team-chat/internal/directory"
	"team-chat/internal/messages"
	"team-chat/internal/observability"
	"team-chat/internal/typing"
)

// ChannelWSHandler streams the message window and active typists of one
// channel. Clients hold one socket per active channel; switching channels
// closes the old socket (tearing down its subscriptions) before the new
// one is opened, so state never leaks across channels.
type ChannelWSHandler struct {
	hub       *Hub
	directory directory.Provider
	stream    messages.Service
	bus       typing.Signaler
	secret    []byte
}

// NewChannelWSHandler constructs a ChannelWSHandler.
func NewChannelWSHandler(hub *Hub, provider directory.Provider, stream messages.Service, bus typing.Signaler, secret []byte) *ChannelWSHandler {
	return &ChannelWSHandler{hub: hub, directory: provider, stream: stream, bus: bus, secret: secret}
}

// Handle upgrades the connection and streams message and typing snapshots
// until the socket closes.
func (h *ChannelWSHandler) Handle(c *gin.Context) {
	channelID := c.Param("channel_id")

	ctx, span := otel.Tracer("team-chat/ws").Start(c.Request.Context(), "ws.channel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := authenticate(c, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	channel, err := h.directory.Get(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, directory.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return
	}
	if !channel.VisibleTo(user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for channel"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := connInfo(c, span, user.ID)

	subCtx, cancelCtx := context.WithCancel(context.Background())
	msgSnapshots, cancelMessages := h.stream.Subscribe(subCtx, channelID, user.ID)
	typerSnapshots, cancelTypers := h.bus.SubscribeTypers(subCtx, channelID, user.ID)

	room := "channel:" + channelID
	h.hub.Add(room, conn, info)
	observability.IncWSActive("channel")
	publishWSEvent(ctx, "channel", room, "ws_connect", "", info)

	var once sync.Once
	teardown := func(reason string) {
		once.Do(func() {
			cancelMessages()
			cancelTypers()
			cancelCtx()
			h.hub.Remove(room, conn)
			observability.DecWSActive("channel")
			publishWSEvent(ctx, "channel", room, "ws_disconnect", reason, info)
			conn.Close()
		})
	}

	go func() {
		for {
			select {
			case window, ok := <-msgSnapshots:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event{Type: "messages", Messages: window}); err != nil {
					teardown(err.Error())
					return
				}
			case typers, ok := <-typerSnapshots:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event{Type: "typers", Typers: typers}); err != nil {
					teardown(err.Error())
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("channel", "ws_error")
				}
				teardown(err.Error())
				return
			}
		}
	}()
}
