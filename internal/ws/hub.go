package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"team-chat/internal/observability"
)

// Room keys: "presence", "channels", or "channel:{id}".

// Hub is the registry of active websocket connections. Each connection
// owns its own store subscriptions; the hub only tracks membership for
// metrics and telemetry.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]ConnInfo
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*websocket.Conn]ConnInfo)}
}

// Add registers a connection in a room.
func (h *Hub) Add(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]ConnInfo)
	}
	h.rooms[room][conn] = info
}

// Remove drops a connection from a room.
func (h *Hub) Remove(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Count reports the number of connections in a room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// publishWSEvent emits one websocket lifecycle event to the broker and the
// metrics registry.
func publishWSEvent(ctx context.Context, kind, room, event, reason string, info ConnInfo) {
	payload := map[string]any{
		"ws": map[string]any{
			"kind":        kind,
			"room":        room,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events."+kind, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, event)
}
