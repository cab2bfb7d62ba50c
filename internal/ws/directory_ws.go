package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"team-chat/internal/directory"
	"team-chat/internal/observability"
)

// DirectoryWSHandler streams the viewer-visible channel list. Lifecycle
// changes reach clients through this live subscription; there is no
// separate refresh step after create/delete.
type DirectoryWSHandler struct {
	hub       *Hub
	directory directory.Provider
	secret    []byte
}

// NewDirectoryWSHandler constructs a DirectoryWSHandler.
func NewDirectoryWSHandler(hub *Hub, provider directory.Provider, secret []byte) *DirectoryWSHandler {
	return &DirectoryWSHandler{hub: hub, directory: provider, secret: secret}
}

// Handle upgrades the connection and streams channel snapshots.
func (h *DirectoryWSHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("team-chat/ws").Start(c.Request.Context(), "ws.channels")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := authenticate(c, h.secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := connInfo(c, span, user.ID)

	subCtx, cancelCtx := context.WithCancel(context.Background())
	snapshots, cancelSub := h.directory.Subscribe(subCtx, user.ID)

	const room = "channels"
	h.hub.Add(room, conn, info)
	observability.IncWSActive("channels")
	publishWSEvent(ctx, "channels", room, "ws_connect", "", info)

	var once sync.Once
	teardown := func(reason string) {
		once.Do(func() {
			cancelSub()
			cancelCtx()
			h.hub.Remove(room, conn)
			observability.DecWSActive("channels")
			publishWSEvent(ctx, "channels", room, "ws_disconnect", reason, info)
			conn.Close()
		})
	}

	go func() {
		for channels := range snapshots {
			if err := conn.WriteJSON(event{Type: "channels", Channels: channels}); err != nil {
				teardown(err.Error())
				return
			}
		}
	}()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("channels", "ws_error")
				}
				teardown(err.Error())
				return
			}
		}
	}()
}
