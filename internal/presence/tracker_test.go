package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-chat/internal/models"
	"team-chat/internal/store/memstore"
)

func TestStartMarksUserOnline(t *testing.T) {
	backend := memstore.New()
	tracker := NewTracker(backend)
	ctx := context.Background()

	user := models.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, tracker.Start(ctx, "sess1", user))

	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "u1", online[0].UID)
	assert.Equal(t, models.StateOnline, online[0].State)
	assert.Equal(t, "Alice", online[0].Name)
	assert.NotZero(t, online[0].LastChanged)
}

func TestDisconnectedFlipsToOffline(t *testing.T) {
	backend := memstore.New()
	tracker := NewTracker(backend)
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, "sess1", models.User{ID: "u1", Name: "Alice"}))
	require.NoError(t, tracker.Disconnected(ctx, "sess1"))

	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestAnySessionDisconnectFlipsOffline(t *testing.T) {
	backend := memstore.New()
	tracker := NewTracker(backend)
	ctx := context.Background()

	// Armed ops apply last-write-wins; firing an older session's op still
	// flips the record rather than leaving the user stuck online.
	user := models.User{ID: "u1", Name: "Alice"}
	require.NoError(t, tracker.Start(ctx, "sess1", user))
	require.NoError(t, tracker.Start(ctx, "sess2", user))

	require.NoError(t, tracker.Disconnected(ctx, "sess1"))
	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestSubscribeOnlineEmitsOnChange(t *testing.T) {
	backend := memstore.New()
	tracker := NewTracker(backend)
	ctx := context.Background()

	updates, cancel := tracker.SubscribeOnline(ctx)
	defer cancel()

	require.NoError(t, tracker.Start(ctx, "sess1", models.User{ID: "u1", Name: "Alice"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case online := <-updates:
			if len(online) == 1 && online[0].UID == "u1" {
				return
			}
		case <-deadline:
			t.Fatal("never observed u1 online")
		}
	}
}

func TestListOnlineSortsByUID(t *testing.T) {
	backend := memstore.New()
	tracker := NewTracker(backend)
	ctx := context.Background()

	require.NoError(t, tracker.Start(ctx, "s2", models.User{ID: "u2", Name: "Bob"}))
	require.NoError(t, tracker.Start(ctx, "s1", models.User{ID: "u1", Name: "Alice"}))

	online, err := tracker.ListOnline(ctx)
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, "u1", online[0].UID)
	assert.Equal(t, "u2", online[1].UID)
}
