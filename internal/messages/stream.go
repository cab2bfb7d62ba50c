package messages

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"team-chat/internal/models"
	"team-chat/internal/notify"
	"team-chat/internal/store"
)

const (
	messagesPath = "messages"
	typingPath   = "typing"

	// Window caps every read to the most recent entries; this is an
	// explicit recency cap, not paging over full history.
	Window = 50

	// UnsendWindow bounds "delete for everyone" relative to the message
	// timestamp. The store does not re-check it; enforcement here is the
	// trust boundary.
	UnsendWindow = 30 * time.Minute
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender can delete for everyone")
	ErrUnsendWindow    = errors.New("unsend window has passed")
	ErrEmptyMessage    = errors.New("message has no content")
	ErrInvalidKind     = errors.New("invalid message kind")
)

// Service is the message stream contract consumed by handlers.
type Service interface {
	Subscribe(ctx context.Context, channelID, viewerID string) (<-chan []models.Message, func())
	History(ctx context.Context, channelID, viewerID string) ([]models.Message, error)
	Send(ctx context.Context, channel models.Channel, sender models.User, text, kind, imageURL string) (models.Message, error)
	Delete(ctx context.Context, channelID, messageID, viewerID string, forEveryone bool) error
}

// Stream owns the bounded, ordered, per-viewer-filtered message window of
// one channel at a time.
type Stream struct {
	store    store.Store
	notifier notify.Notifier
	now      func() time.Time
}

// NewStream builds a Stream. notifier may be nil when dispatch is disabled.
func NewStream(s store.Store, notifier notify.Notifier) *Stream {
	return &Stream{store: s, notifier: notifier, now: time.Now}
}

// Subscribe yields the visible message window on every change. Each
// snapshot is authoritative; nothing from prior snapshots is kept.
func (s *Stream) Subscribe(ctx context.Context, channelID, viewerID string) (<-chan []models.Message, func()) {
	snapshots, cancel, err := s.store.Subscribe(ctx, store.Join(messagesPath, channelID))
	if err != nil {
		log.Printf("messages: subscribe failed channel=%s: %v", channelID, err)
		empty := make(chan []models.Message)
		return empty, func() {}
	}

	out := make(chan []models.Message, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			window := visibleWindow(snap.Children, viewerID)
			select {
			case out <- window:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- window:
				default:
				}
			}
		}
	}()
	return out, cancel
}

// History is the one-shot form of Subscribe.
func (s *Stream) History(ctx context.Context, channelID, viewerID string) ([]models.Message, error) {
	children, err := s.store.Children(ctx, store.Join(messagesPath, channelID))
	if err != nil {
		return nil, err
	}
	return visibleWindow(children, viewerID), nil
}

// Send appends a message with a server-assigned timestamp and key. The
// sender's display fields are snapshotted into the record. Sending implies
// "stopped typing", so the sender's marker is cleared; members of
// private/dm channels are notified fire-and-forget.
func (s *Stream) Send(ctx context.Context, channel models.Channel, sender models.User, text, kind, imageURL string) (models.Message, error) {
	if kind == "" {
		kind = models.MessageText
	}
	switch kind {
	case models.MessageText, models.MessageSystem:
		if text == "" {
			return models.Message{}, ErrEmptyMessage
		}
	case models.MessageImage:
		if imageURL == "" {
			return models.Message{}, ErrEmptyMessage
		}
	default:
		return models.Message{}, ErrInvalidKind
	}

	timestamp, err := s.store.ServerNow(ctx)
	if err != nil {
		return models.Message{}, err
	}
	record := map[string]any{
		"text":        text,
		"senderId":    sender.ID,
		"senderName":  sender.Name,
		"senderPhoto": sender.PhotoURL,
		"imageURL":    imageURL,
		"type":        kind,
		"timestamp":   timestamp,
	}
	id, err := s.store.Push(ctx, store.Join(messagesPath, channel.ID), record)
	if err != nil {
		return models.Message{}, err
	}

	if err := s.store.Delete(ctx, store.Join(typingPath, channel.ID, sender.ID)); err != nil {
		log.Printf("messages: clearing typing marker failed channel=%s: %v", channel.ID, err)
	}

	if s.notifier != nil && channel.Kind != models.ChannelPublic {
		for _, member := range channel.Members {
			if member == sender.ID {
				continue
			}
			s.notifier.Notify(ctx, member, "message", sender.Name, text, map[string]string{
				"channel_id": channel.ID,
				"message_id": id,
			})
		}
	}

	return models.Message{
		ID:          id,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		SenderPhoto: sender.PhotoURL,
		Text:        text,
		ImageURL:    imageURL,
		Type:        kind,
		Timestamp:   timestamp,
	}, nil
}

// Delete soft-deletes for the viewer, or unsends for everyone. Unsend is
// sender-only and gated to UnsendWindow since the message timestamp; past
// the window no write happens. An unsend keeps the record as an isUnsent
// placeholder with its content cleared.
func (s *Stream) Delete(ctx context.Context, channelID, messageID, viewerID string, forEveryone bool) error {
	children, err := s.store.Children(ctx, store.Join(messagesPath, channelID))
	if err != nil {
		return err
	}
	raw, ok := children[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}

	path := store.Join(messagesPath, channelID, messageID)
	if !forEveryone {
		return s.store.Update(ctx, path, map[string]any{
			"deletedFor/" + viewerID: true,
		})
	}

	if msg.SenderID != viewerID {
		return ErrNotSender
	}
	if s.now().UnixMilli()-msg.Timestamp >= UnsendWindow.Milliseconds() {
		return ErrUnsendWindow
	}
	return s.store.Update(ctx, path, map[string]any{
		"isUnsent": true,
		"text":     "",
		"imageURL": "",
	})
}

// visibleWindow orders by timestamp (push-key order breaks ties), caps to
// the most recent Window entries, then drops the viewer's soft-deletes.
func visibleWindow(children map[string]json.RawMessage, viewerID string) []models.Message {
	all := make([]models.Message, 0, len(children))
	for id, raw := range children {
		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("messages: skipping unreadable record id=%s: %v", id, err)
			continue
		}
		msg.ID = id
		all = append(all, msg)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > Window {
		all = all[len(all)-Window:]
	}

	visible := make([]models.Message, 0, len(all))
	for _, msg := range all {
		if msg.VisibleTo(viewerID) {
			visible = append(visible, msg)
		}
	}
	return visible
}
