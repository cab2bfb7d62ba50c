package typing

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"team-chat/internal/models"
	"team-chat/internal/store"
)

const (
	typingPath = "typing"

	// Staleness is judged on the reading client's clock: markers at or
	// past this age are excluded even if never physically removed.
	Staleness = 5 * time.Second

	// pruneTick re-evaluates staleness even when no store traffic
	// arrives, so a typist who vanished uncleanly disappears within one
	// tick past the staleness mark.
	pruneTick = time.Second
)

// Signaler is the typing bus contract consumed by handlers.
type Signaler interface {
	SetTyping(ctx context.Context, channelID string, user models.User, isTyping bool) error
	SubscribeTypers(ctx context.Context, channelID, viewerID string) (<-chan []models.Typer, func())
}

// Bus publishes and consumes short-lived typing markers.
type Bus struct {
	store store.Store
	now   func() time.Time
}

// NewBus builds a Bus on the given store.
func NewBus(s store.Store) *Bus {
	return &Bus{store: s, now: time.Now}
}

// SetTyping writes the marker on a keystroke and deletes it outright when
// the user stops; a false value is a removal, not a flag.
func (b *Bus) SetTyping(ctx context.Context, channelID string, user models.User, isTyping bool) error {
	path := store.Join(typingPath, channelID, user.ID)
	if !isTyping {
		return b.store.Delete(ctx, path)
	}
	return b.store.Put(ctx, path, map[string]any{
		"name":      user.Name,
		"timestamp": store.ServerTimestamp,
	})
}

// SubscribeTypers yields the active typists of a channel, excluding the
// viewer, stale markers and duplicate display names. The list is
// re-evaluated both on store snapshots and on a local timer tick.
func (b *Bus) SubscribeTypers(ctx context.Context, channelID, viewerID string) (<-chan []models.Typer, func()) {
	snapshots, cancel, err := b.store.Subscribe(ctx, store.Join(typingPath, channelID))
	if err != nil {
		log.Printf("typing: subscribe failed, degrading to no data: %v", err)
		empty := make(chan []models.Typer)
		return empty, func() {}
	}

	out := make(chan []models.Typer, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(pruneTick)
		defer ticker.Stop()

		var latest map[string]json.RawMessage
		var lastEmitted []models.Typer
		emitted := false

		emit := func() {
			typers := b.activeTypers(latest, viewerID)
			if emitted && equalTypers(typers, lastEmitted) {
				return
			}
			lastEmitted = typers
			emitted = true
			select {
			case out <- typers:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- typers:
				default:
				}
			}
		}

		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				latest = snap.Children
				emit()
			case <-ticker.C:
				emit()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel
}

func (b *Bus) activeTypers(children map[string]json.RawMessage, viewerID string) []models.Typer {
	cutoff := b.now().Add(-Staleness).UnixMilli()
	seen := make(map[string]bool)
	typers := make([]models.Typer, 0, len(children))
	for uid, raw := range children {
		if uid == viewerID {
			continue
		}
		var marker models.TypingMarker
		if err := json.Unmarshal(raw, &marker); err != nil {
			continue
		}
		if marker.Timestamp <= cutoff || seen[marker.Name] {
			continue
		}
		seen[marker.Name] = true
		typers = append(typers, models.Typer{ID: uid, Name: marker.Name})
	}
	sort.Slice(typers, func(i, j int) bool { return typers[i].ID < typers[j].ID })
	return typers
}

func equalTypers(a, b []models.Typer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
