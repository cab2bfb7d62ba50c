package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	"team-chat/internal/models"
	"team-chat/internal/store"
)

const channelsPath = "channels"

var ErrChannelNotFound = errors.New("channel not found")

// Provider is the channel directory contract consumed by handlers.
type Provider interface {
	Subscribe(ctx context.Context, viewerID string) (<-chan []models.Channel, func())
	Visible(ctx context.Context, viewerID string) ([]models.Channel, error)
	Get(ctx context.Context, channelID string) (models.Channel, error)
}

// Directory filters the full channel set down to what a viewer may see.
type Directory struct {
	store     store.Store
	bootstrap sync.Once
}

// New builds a Directory on the given store.
func New(s store.Store) *Directory {
	return &Directory{store: s}
}

// Subscribe yields the viewer-visible channel list on every change. When
// the store holds no channels at all, a default public #general channel is
// created once per Directory instance; concurrent first loads from several
// processes may each bootstrap, and the resulting duplicate #general
// channels are a tolerated race, not an error.
func (d *Directory) Subscribe(ctx context.Context, viewerID string) (<-chan []models.Channel, func()) {
	snapshots, cancel, err := d.store.Subscribe(ctx, channelsPath)
	if err != nil {
		log.Printf("directory: subscribe failed, degrading to no data: %v", err)
		empty := make(chan []models.Channel)
		return empty, func() {}
	}

	out := make(chan []models.Channel, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			if len(snap.Children) == 0 {
				d.maybeBootstrap(ctx)
			}
			channels := visibleFromSnapshot(snap.Children, viewerID)
			select {
			case out <- channels:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- channels:
				default:
				}
			}
		}
	}()
	return out, cancel
}

// Visible is the one-shot form of Subscribe.
func (d *Directory) Visible(ctx context.Context, viewerID string) ([]models.Channel, error) {
	children, err := d.store.Children(ctx, channelsPath)
	if err != nil {
		log.Printf("directory: list failed, degrading to no data: %v", err)
		return []models.Channel{}, nil
	}
	if len(children) == 0 {
		d.maybeBootstrap(ctx)
		if children, err = d.store.Children(ctx, channelsPath); err != nil {
			return []models.Channel{}, nil
		}
	}
	return visibleFromSnapshot(children, viewerID), nil
}

// Get loads a single channel without visibility filtering; callers check
// VisibleTo themselves.
func (d *Directory) Get(ctx context.Context, channelID string) (models.Channel, error) {
	children, err := d.store.Children(ctx, channelsPath)
	if err != nil {
		return models.Channel{}, err
	}
	raw, ok := children[channelID]
	if !ok {
		return models.Channel{}, ErrChannelNotFound
	}
	return models.DecodeChannel(channelID, raw)
}

func (d *Directory) maybeBootstrap(ctx context.Context) {
	d.bootstrap.Do(func() {
		_, err := d.store.Push(ctx, channelsPath, map[string]any{
			"name":        "general",
			"kind":        models.ChannelPublic,
			"description": "General discussion",
			"createdAt":   store.ServerTimestamp,
		})
		if err != nil {
			log.Printf("directory: bootstrap of #general failed: %v", err)
			return
		}
		log.Printf("directory: bootstrapped default #general channel")
	})
}

func visibleFromSnapshot(children map[string]json.RawMessage, viewerID string) []models.Channel {
	channels := make([]models.Channel, 0, len(children))
	for id, raw := range children {
		channel, err := models.DecodeChannel(id, raw)
		if err != nil {
			log.Printf("directory: skipping unreadable channel id=%s: %v", id, err)
			continue
		}
		if channel.VisibleTo(viewerID) {
			channels = append(channels, channel)
		}
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].CreatedAt != channels[j].CreatedAt {
			return channels[i].CreatedAt < channels[j].CreatedAt
		}
		return channels[i].ID < channels[j].ID
	})
	return channels
}
