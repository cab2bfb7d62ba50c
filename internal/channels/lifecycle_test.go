package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-chat/internal/models"
	"team-chat/internal/store/memstore"
)

func TestCreatePublicChannelIgnoresMembers(t *testing.T) {
	backend := memstore.New()
	lifecycle := NewLifecycle(backend)
	ctx := context.Background()

	id, err := lifecycle.CreateChannel(ctx, "general", models.ChannelPublic, "talk", []string{"u1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	children, err := backend.Children(ctx, "channels")
	require.NoError(t, err)
	channel, err := models.DecodeChannel(id, children[id])
	require.NoError(t, err)
	assert.Empty(t, channel.Members)
	assert.NotZero(t, channel.CreatedAt)
}

func TestCreatePublicChannelAllowsDuplicates(t *testing.T) {
	lifecycle := NewLifecycle(memstore.New())
	ctx := context.Background()

	first, err := lifecycle.CreateChannel(ctx, "general", models.ChannelPublic, "", nil)
	require.NoError(t, err)
	second, err := lifecycle.CreateChannel(ctx, "general", models.ChannelPublic, "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCreateDMIsIdempotentPerPair(t *testing.T) {
	lifecycle := NewLifecycle(memstore.New())
	ctx := context.Background()

	first, err := lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u1", "u2"})
	require.NoError(t, err)

	// Reversed member order resolves to the same conversation.
	second, err := lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u2", "u1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u1", "u3"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCreateDMRejectsBadMembership(t *testing.T) {
	lifecycle := NewLifecycle(memstore.New())
	ctx := context.Background()

	_, err := lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u1"})
	assert.ErrorIs(t, err, ErrInvalidMembership)

	// Duplicates collapse to one member.
	_, err = lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u1", "u1"})
	assert.ErrorIs(t, err, ErrInvalidMembership)

	_, err = lifecycle.CreateChannel(ctx, "dm", models.ChannelDM, "", []string{"u1", "u2", "u3"})
	assert.ErrorIs(t, err, ErrInvalidMembership)
}

func TestCreatePrivateChannelRequiresMembers(t *testing.T) {
	lifecycle := NewLifecycle(memstore.New())
	ctx := context.Background()

	_, err := lifecycle.CreateChannel(ctx, "team", models.ChannelPrivate, "", nil)
	assert.ErrorIs(t, err, ErrInvalidMembership)

	id, err := lifecycle.CreateChannel(ctx, "team", models.ChannelPrivate, "", []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCreateUnknownKind(t *testing.T) {
	lifecycle := NewLifecycle(memstore.New())

	_, err := lifecycle.CreateChannel(context.Background(), "x", "broadcast", "", nil)
	assert.Error(t, err)
}

func TestDeleteChannelCascades(t *testing.T) {
	backend := memstore.New()
	lifecycle := NewLifecycle(backend)
	ctx := context.Background()

	id, err := lifecycle.CreateChannel(ctx, "general", models.ChannelPublic, "", nil)
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, "messages/"+id+"/m1", map[string]any{"text": "hi"}))
	require.NoError(t, backend.Put(ctx, "typing/"+id+"/u1", map[string]any{"name": "Alice"}))

	require.NoError(t, lifecycle.DeleteChannel(ctx, id))

	channels, err := backend.Children(ctx, "channels")
	require.NoError(t, err)
	assert.NotContains(t, channels, id)

	messages, err := backend.Children(ctx, "messages/"+id)
	require.NoError(t, err)
	assert.Empty(t, messages)

	typing, err := backend.Children(ctx, "typing/"+id)
	require.NoError(t, err)
	assert.Empty(t, typing)
}
