package directory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-chat/internal/models"
	"team-chat/internal/store/memstore"
)

func TestVisibleFiltersByMembership(t *testing.T) {
	backend := memstore.New()
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "channels/c1", map[string]any{
		"name": "general", "kind": models.ChannelPublic,
	}))
	require.NoError(t, backend.Put(ctx, "channels/c2", map[string]any{
		"name": "secret", "kind": models.ChannelPrivate, "members": []string{"u1", "u2"},
	}))
	require.NoError(t, backend.Put(ctx, "channels/c3", map[string]any{
		"name": "dm", "kind": models.ChannelDM, "members": []string{"u2", "u3"},
	}))

	d := New(backend)

	visible, err := d.Visible(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	ids := []string{visible[0].ID, visible[1].ID}
	assert.Contains(t, ids, "c1")
	assert.Contains(t, ids, "c2")

	visible, err = d.Visible(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	ids = []string{visible[0].ID, visible[1].ID}
	assert.Contains(t, ids, "c1")
	assert.Contains(t, ids, "c3")
}

func TestVisibleSortsByCreatedAt(t *testing.T) {
	backend := memstore.New()
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "channels/newer", map[string]any{
		"name": "b", "kind": models.ChannelPublic, "createdAt": 2000,
	}))
	require.NoError(t, backend.Put(ctx, "channels/older", map[string]any{
		"name": "a", "kind": models.ChannelPublic, "createdAt": 1000,
	}))

	visible, err := New(backend).Visible(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "older", visible[0].ID)
	assert.Equal(t, "newer", visible[1].ID)
}

func TestVisibleBootstrapsGeneralWhenEmpty(t *testing.T) {
	backend := memstore.New()
	d := New(backend)

	visible, err := d.Visible(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "general", visible[0].Name)
	assert.Equal(t, models.ChannelPublic, visible[0].Kind)
	assert.NotZero(t, visible[0].CreatedAt)
}

func TestBootstrapRunsOncePerInstance(t *testing.T) {
	backend := memstore.New()
	ctx := context.Background()
	d := New(backend)

	_, err := d.Visible(ctx, "u1")
	require.NoError(t, err)

	// Deleting the bootstrapped channel must not trigger a second
	// bootstrap from the same instance.
	children, err := backend.Children(ctx, "channels")
	require.NoError(t, err)
	for id := range children {
		require.NoError(t, backend.Delete(ctx, "channels/"+id))
	}

	visible, err := d.Visible(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestGetUnknownChannel(t *testing.T) {
	backend := memstore.New()

	_, err := New(backend).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestGetNormalizesSparseMemberMap(t *testing.T) {
	backend := memstore.New()
	ctx := context.Background()

	// Stored member lists may come back as a map of index keys.
	require.NoError(t, backend.Put(ctx, "channels/c1", map[string]any{
		"name":    "dm",
		"kind":    models.ChannelDM,
		"members": map[string]string{"0": "u1", "2": "u2"},
	}))

	channel, err := New(backend).Get(ctx, "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, channel.Members)
	assert.True(t, channel.VisibleTo("u2"))
	assert.False(t, channel.VisibleTo("u3"))
}

func TestSubscribeEmitsVisibleChannels(t *testing.T) {
	backend := memstore.New()
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "channels/c1", map[string]any{
		"name": "general", "kind": models.ChannelPublic,
	}))

	updates, cancel := New(backend).Subscribe(ctx, "u1")
	defer cancel()

	channels := <-updates
	require.Len(t, channels, 1)
	assert.Equal(t, "c1", channels[0].ID)

	raw, err := json.Marshal(channels[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"general"`)
}
