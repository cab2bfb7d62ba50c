package presence

import (
	"context"
	"encoding/json"
	"log"
	"sort"

	"team-chat/internal/models"
	"team-chat/internal/store"
)

const statusPath = "status"

// Service is the presence contract consumed by handlers and the gateway.
type Service interface {
	Start(ctx context.Context, sessionID string, user models.User) error
	Disconnected(ctx context.Context, sessionID string) error
	SubscribeOnline(ctx context.Context) (<-chan []models.Presence, func())
	ListOnline(ctx context.Context) ([]models.Presence, error)
}

// Tracker maintains the online/offline state machine over the realtime
// store. Presence is a soft feature: read failures degrade to empty data.
type Tracker struct {
	store store.Store
}

// NewTracker builds a Tracker on the given store.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// Start marks the user online for the given session. The offline write is
// armed on the session before the online record is written: if the process
// dies in between, the armed op still flips the record to offline, so the
// user can never get stuck online.
func (t *Tracker) Start(ctx context.Context, sessionID string, user models.User) error {
	path := store.Join(statusPath, user.ID)
	err := t.store.OnDisconnect(ctx, sessionID, path, map[string]any{
		"state":        models.StateOffline,
		"last_changed": store.ServerTimestamp,
	})
	if err != nil {
		return err
	}
	return t.store.Put(ctx, path, map[string]any{
		"state":        models.StateOnline,
		"last_changed": store.ServerTimestamp,
		"uid":          user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"photoURL":     user.PhotoURL,
	})
}

// Disconnected fires the session's armed ops. The gateway calls this when
// it observes the connection close; the client is not trusted to report
// its own departure.
func (t *Tracker) Disconnected(ctx context.Context, sessionID string) error {
	return t.store.FireDisconnect(ctx, sessionID)
}

// SubscribeOnline yields the online subset of all presence records on every
// change. Subscription failures are logged and surface as a stream that
// never emits.
func (t *Tracker) SubscribeOnline(ctx context.Context) (<-chan []models.Presence, func()) {
	snapshots, cancel, err := t.store.Subscribe(ctx, statusPath)
	if err != nil {
		log.Printf("presence: subscribe failed, degrading to no data: %v", err)
		empty := make(chan []models.Presence)
		return empty, func() {}
	}

	out := make(chan []models.Presence, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			users := onlineFromSnapshot(snap.Children)
			select {
			case out <- users:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- users:
				default:
				}
			}
		}
	}()
	return out, cancel
}

// ListOnline is the one-shot form of SubscribeOnline.
func (t *Tracker) ListOnline(ctx context.Context) ([]models.Presence, error) {
	children, err := t.store.Children(ctx, statusPath)
	if err != nil {
		log.Printf("presence: list failed, degrading to no data: %v", err)
		return []models.Presence{}, nil
	}
	return onlineFromSnapshot(children), nil
}

func onlineFromSnapshot(children map[string]json.RawMessage) []models.Presence {
	users := make([]models.Presence, 0, len(children))
	for uid, raw := range children {
		var record models.Presence
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Printf("presence: skipping unreadable record uid=%s: %v", uid, err)
			continue
		}
		if record.State != models.StateOnline {
			continue
		}
		record.UID = uid
		users = append(users, record)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users
}
