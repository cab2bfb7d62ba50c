package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"team-chat/internal/models"
	"team-chat/internal/observability"
	"team-chat/internal/presence"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is the frame pushed to websocket clients; exactly one payload
// field is set per frame.
type event struct {
	Type     string            `json:"type"`
	Online   []models.Presence `json:"online,omitempty"`
	Channels []models.Channel  `json:"channels,omitempty"`
	Messages []models.Message  `json:"messages,omitempty"`
	Typers   []models.Typer    `json:"typers,omitempty"`
}

// PresenceWSHandler arms presence for the connecting user and streams the
// online-users list. The socket itself is the connectivity signal: closing
// it, cleanly or not, fires the armed offline write.
type PresenceWSHandler struct {
	hub     *Hub
	tracker presence.Service
	secret  []byte
}

// NewPresenceWSHandler constructs a PresenceWSHandler.
func NewPresenceWSHandler(hub *Hub, tracker presence.Service, secret []byte) *PresenceWSHandler {
	return &PresenceWSHandler{hub: hub, tracker: tracker, secret: secret}
}

// Handle upgrades the connection, marks the user online and streams
// presence snapshots until the socket closes.
func (h *PresenceWSHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("team-chat/ws").Start(c.Request.Context(), "ws.presence")
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
	sessionID := info.ConnID

	subCtx, cancelCtx := context.WithCancel(context.Background())
	if err := h.tracker.Start(subCtx, sessionID, user); err != nil {
		// Presence is best-effort: keep the socket open so the online
		// list can still stream, and log via the tracker.
		observability.IncWSEvent("presence", "ws_error")
	}
	snapshots, cancelSub := h.tracker.SubscribeOnline(subCtx)

	const room = "presence"
	h.hub.Add(room, conn, info)
	observability.IncWSActive("presence")
	publishWSEvent(ctx, "presence", room, "ws_connect", "", info)

	var once sync.Once
	teardown := func(reason string) {
		once.Do(func() {
			cancelSub()
			cancelCtx()
			h.hub.Remove(room, conn)
			observability.DecWSActive("presence")
			publishWSEvent(ctx, "presence", room, "ws_disconnect", reason, info)

			fireCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = h.tracker.Disconnected(fireCtx, sessionID)
			conn.Close()
		})
	}

	go func() {
		for online := range snapshots {
			if err := conn.WriteJSON(event{Type: "online", Online: online}); err != nil {
				teardown(err.Error())
				return
			}
		}
	}()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("presence", "ws_error")
				}
				teardown(err.Error())
				return
			}
		}
	}()
}
