package typing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-chat/internal/models"
	"team-chat/internal/store/memstore"
)

func marker(name string, ts int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"name":%q,"timestamp":%d}`, name, ts))
}

func TestActiveTypersStalenessBoundary(t *testing.T) {
	bus := NewBus(memstore.New())
	now := int64(1_000_000)
	bus.now = func() time.Time { return time.UnixMilli(now) }

	children := map[string]json.RawMessage{
		"fresh": marker("Fresh", now-4999),
		"edge":  marker("Edge", now-5000),
		"stale": marker("Stale", now-5001),
	}

	typers := bus.activeTypers(children, "viewer")
	require.Len(t, typers, 1)
	assert.Equal(t, "fresh", typers[0].ID)
}

func TestActiveTypersExcludesViewer(t *testing.T) {
	bus := NewBus(memstore.New())
	now := int64(1_000_000)
	bus.now = func() time.Time { return time.UnixMilli(now) }

	children := map[string]json.RawMessage{
		"viewer": marker("Me", now),
		"other":  marker("Other", now),
	}

	typers := bus.activeTypers(children, "viewer")
	require.Len(t, typers, 1)
	assert.Equal(t, "other", typers[0].ID)
}

func TestActiveTypersDedupesDisplayNames(t *testing.T) {
	bus := NewBus(memstore.New())
	now := int64(1_000_000)
	bus.now = func() time.Time { return time.UnixMilli(now) }

	// Two sessions of the same account produce two markers with one name.
	children := map[string]json.RawMessage{
		"sessA": marker("Alice", now),
		"sessB": marker("Alice", now),
	}

	typers := bus.activeTypers(children, "viewer")
	assert.Len(t, typers, 1)
}

func TestSetTypingWritesAndDeletesMarker(t *testing.T) {
	backend := memstore.New()
	bus := NewBus(backend)
	ctx := context.Background()
	user := models.User{ID: "u1", Name: "Alice"}

	require.NoError(t, bus.SetTyping(ctx, "ch1", user, true))
	children, err := backend.Children(ctx, "typing/ch1")
	require.NoError(t, err)
	require.Len(t, children, 1)

	var stored models.TypingMarker
	require.NoError(t, json.Unmarshal(children["u1"], &stored))
	assert.Equal(t, "Alice", stored.Name)
	assert.NotZero(t, stored.Timestamp)

	require.NoError(t, bus.SetTyping(ctx, "ch1", user, false))
	children, err = backend.Children(ctx, "typing/ch1")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSubscribeTypersEmitsAndPrunes(t *testing.T) {
	backend := memstore.New()
	bus := NewBus(backend)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates, cancel := bus.SubscribeTypers(ctx, "ch1", "viewer")
	defer cancel()

	require.NoError(t, bus.SetTyping(ctx, "ch1", models.User{ID: "u1", Name: "Alice"}, true))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case typers := <-updates:
			if len(typers) == 1 && typers[0].Name == "Alice" {
				return
			}
		case <-deadline:
			t.Fatal("never observed Alice typing")
		}
	}
}
