package messages

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"team-chat/internal/mocks"
	"team-chat/internal/models"
	"team-chat/internal/store/memstore"
)

var (
	alice = models.User{ID: "u1", Name: "Alice"}
	bob   = models.User{ID: "u2", Name: "Bob"}
)

func publicChannel() models.Channel {
	return models.Channel{ID: "ch1", Name: "general", Kind: models.ChannelPublic}
}

func TestSendAndHistory(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	sent, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, models.MessageText, sent.Type)
	assert.NotZero(t, sent.Timestamp)

	for _, viewer := range []string{"u1", "u2"} {
		window, err := stream.History(ctx, "ch1", viewer)
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, "hi", window[0].Text)
		assert.Equal(t, "Alice", window[0].SenderName)
	}
}

func TestSendValidation(t *testing.T) {
	stream := NewStream(memstore.New(), nil)
	ctx := context.Background()

	_, err := stream.Send(ctx, publicChannel(), alice, "", "", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = stream.Send(ctx, publicChannel(), alice, "", models.MessageImage, "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = stream.Send(ctx, publicChannel(), alice, "", models.MessageImage, "https://example.com/a.png")
	assert.NoError(t, err)

	_, err = stream.Send(ctx, publicChannel(), alice, "hi", "video", "")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestSendClearsTypingMarker(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "typing/ch1/u1", map[string]any{"name": "Alice", "timestamp": 1}))

	_, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)

	children, err := backend.Children(ctx, "typing/ch1")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSendNotifiesOtherMembersOfPrivateChannel(t *testing.T) {
	notifier := new(mocks.NotifierMock)
	stream := NewStream(memstore.New(), notifier)
	channel := models.Channel{ID: "dm1", Kind: models.ChannelDM, Members: []string{"u1", "u2"}}

	notifier.On("Notify", mock.Anything, "u2", "message", "Alice", "hi", mock.Anything).Once()

	_, err := stream.Send(context.Background(), channel, alice, "hi", "", "")
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestSendDoesNotNotifyPublicChannel(t *testing.T) {
	notifier := new(mocks.NotifierMock)
	stream := NewStream(memstore.New(), notifier)

	_, err := stream.Send(context.Background(), publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSoftDeleteHidesForOneViewerOnly(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	sent, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)

	require.NoError(t, stream.Delete(ctx, "ch1", sent.ID, "u2", false))

	mine, err := stream.History(ctx, "ch1", "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := stream.History(ctx, "ch1", "u2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestUnsendReplacesContentForEveryone(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	sent, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)

	require.NoError(t, stream.Delete(ctx, "ch1", sent.ID, "u1", true))

	for _, viewer := range []string{"u1", "u2"} {
		window, err := stream.History(ctx, "ch1", viewer)
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.True(t, window[0].IsUnsent)
		assert.Empty(t, window[0].Text)
	}
}

func TestUnsendRejectsNonSender(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	sent, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)

	err = stream.Delete(ctx, "ch1", sent.ID, bob.ID, true)
	assert.ErrorIs(t, err, ErrNotSender)
}

func TestUnsendWindowBoundary(t *testing.T) {
	backend := memstore.New()
	backend.Now = func() time.Time { return time.UnixMilli(1_000_000) }
	stream := NewStream(backend, nil)
	ctx := context.Background()

	sent, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), sent.Timestamp)

	// One millisecond short of the window still unsends.
	early := NewStream(backend, nil)
	early.now = func() time.Time { return time.UnixMilli(1_000_000 + UnsendWindow.Milliseconds() - 1) }
	other, err := early.Send(ctx, publicChannel(), alice, "second", "", "")
	require.NoError(t, err)
	require.NoError(t, early.Delete(ctx, "ch1", other.ID, "u1", true))

	// At exactly the window the delete is rejected and nothing changes.
	late := NewStream(backend, nil)
	late.now = func() time.Time { return time.UnixMilli(1_000_000 + UnsendWindow.Milliseconds()) }
	err = late.Delete(ctx, "ch1", sent.ID, "u1", true)
	assert.ErrorIs(t, err, ErrUnsendWindow)

	window, err := stream.History(ctx, "ch1", "u2")
	require.NoError(t, err)
	var target models.Message
	for _, msg := range window {
		if msg.ID == sent.ID {
			target = msg
		}
	}
	assert.Equal(t, "hi", target.Text)
	assert.False(t, target.IsUnsent)
}

func TestDeleteUnknownMessage(t *testing.T) {
	stream := NewStream(memstore.New(), nil)

	err := stream.Delete(context.Background(), "ch1", "missing", "u1", false)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestHistoryCapsToWindow(t *testing.T) {
	backend := memstore.New()
	var tick int64
	backend.Now = func() time.Time { tick++; return time.UnixMilli(tick) }
	stream := NewStream(backend, nil)
	ctx := context.Background()

	for i := 0; i < Window+10; i++ {
		_, err := stream.Send(ctx, publicChannel(), alice, fmt.Sprintf("m%d", i), "", "")
		require.NoError(t, err)
	}

	window, err := stream.History(ctx, "ch1", "u1")
	require.NoError(t, err)
	require.Len(t, window, Window)
	// Oldest entries fall off the front; the newest survives.
	assert.Equal(t, fmt.Sprintf("m%d", Window+9), window[len(window)-1].Text)
	assert.Equal(t, "m10", window[0].Text)
}

func TestHistoryOrdersByTimestamp(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	backend.Now = func() time.Time { return time.UnixMilli(2000) }
	_, err := stream.Send(ctx, publicChannel(), alice, "later", "", "")
	require.NoError(t, err)

	backend.Now = func() time.Time { return time.UnixMilli(1000) }
	_, err = stream.Send(ctx, publicChannel(), bob, "earlier", "", "")
	require.NoError(t, err)

	window, err := stream.History(ctx, "ch1", "u1")
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "earlier", window[0].Text)
	assert.Equal(t, "later", window[1].Text)
}

func TestSubscribeEmitsWindowOnChange(t *testing.T) {
	backend := memstore.New()
	stream := NewStream(backend, nil)
	ctx := context.Background()

	updates, cancel := stream.Subscribe(ctx, "ch1", "u2")
	defer cancel()

	_, err := stream.Send(ctx, publicChannel(), alice, "hi", "", "")
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case window := <-updates:
			if len(window) == 1 && window[0].Text == "hi" {
				return
			}
		case <-deadline:
			t.Fatal("never observed the message")
		}
	}
}
