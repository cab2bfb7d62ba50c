package channels

import (
	"context"
	"errors"
	"log"

	"team-chat/internal/models"
	"team-chat/internal/store"
)

const (
	channelsPath = "channels"
	messagesPath = "messages"
	typingPath   = "typing"
)

var ErrInvalidMembership = errors.New("dm requires exactly two distinct members")

// Manager is the channel lifecycle contract consumed by handlers.
type Manager interface {
	CreateChannel(ctx context.Context, name, kind, description string, members []string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// Lifecycle creates and deletes channels. There is no uniqueness
// constraint in the store; DM dedup is a search-before-create step.
type Lifecycle struct {
	store store.Store
}

// NewLifecycle builds a Lifecycle on the given store.
func NewLifecycle(s store.Store) *Lifecycle {
	return &Lifecycle{store: s}
}

// CreateChannel inserts a channel and returns its id. A dm whose unordered
// member pair already exists returns the existing id without writing;
// public channels are never deduplicated. A dm without exactly two
// distinct members is rejected before any write.
func (l *Lifecycle) CreateChannel(ctx context.Context, name, kind, description string, members []string) (string, error) {
	record := map[string]any{
		"name":        name,
		"kind":        kind,
		"description": description,
		"createdAt":   store.ServerTimestamp,
	}

	switch kind {
	case models.ChannelPublic:
		// Members are ignored for public channels.
	case models.ChannelDM:
		pair := distinct(members)
		if len(pair) != 2 {
			return "", ErrInvalidMembership
		}
		if existing, ok := l.findDM(ctx, pair); ok {
			return existing, nil
		}
		record["members"] = pair
	case models.ChannelPrivate:
		set := distinct(members)
		if len(set) == 0 {
			return "", ErrInvalidMembership
		}
		record["members"] = set
	default:
		return "", errors.New("unknown channel kind: " + kind)
	}

	return l.store.Push(ctx, channelsPath, record)
}

// DeleteChannel removes the channel record first, so no new writes target
// a half-deleted channel, then the message and typing collections. The
// trailing cleanups tolerate partial completion and can be retried; their
// failures are logged, not returned.
func (l *Lifecycle) DeleteChannel(ctx context.Context, channelID string) error {
	if err := l.store.Delete(ctx, store.Join(channelsPath, channelID)); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, store.Join(messagesPath, channelID)); err != nil {
		log.Printf("channels: message cleanup failed channel=%s: %v", channelID, err)
	}
	if err := l.store.Delete(ctx, store.Join(typingPath, channelID)); err != nil {
		log.Printf("channels: typing cleanup failed channel=%s: %v", channelID, err)
	}
	return nil
}

func (l *Lifecycle) findDM(ctx context.Context, pair []string) (string, bool) {
	children, err := l.store.Children(ctx, channelsPath)
	if err != nil {
		log.Printf("channels: dm dedup scan failed: %v", err)
		return "", false
	}
	for id, raw := range children {
		channel, err := models.DecodeChannel(id, raw)
		if err != nil {
			continue
		}
		if channel.Kind == models.ChannelDM && channel.HasMemberSet(pair) {
			return id, true
		}
	}
	return "", false
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
