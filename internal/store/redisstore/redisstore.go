package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"team-chat/internal/observability"
	"team-chat/internal/store"
)

const (
	dataPrefix       = "rt:"
	changedPrefix    = "rtc:"
	disconnectPrefix = "rt:disconnect:"
)

// Client is the Redis-backed Store. Every collection path maps to one hash
// (field = record key, value = record JSON); mutations publish the path on
// a pub/sub channel and subscribers re-read the hash. Armed disconnect ops
// live in a per-session hash so they survive gateway restarts.
type Client struct {
	cli *redis.Client
}

// New connects and pings the Redis backend.
func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Put(ctx context.Context, path string, value map[string]any) error {
	parent, key, err := store.Split(path)
	if err != nil {
		return err
	}
	now, err := c.ServerNow(ctx)
	if err != nil {
		return track("put", err)
	}
	raw, err := json.Marshal(store.ResolveTimestamps(value, now))
	if err != nil {
		return err
	}
	if err := c.cli.HSet(ctx, dataPrefix+parent, key, raw).Err(); err != nil {
		return track("put", err)
	}
	return track("put", c.publish(ctx, parent))
}

func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	parent, _, err := store.Split(path)
	if err != nil {
		return err
	}
	now, err := c.ServerNow(ctx)
	if err != nil {
		return track("update", err)
	}
	if err := c.patch(ctx, path, store.ResolveTimestamps(fields, now)); err != nil {
		return track("update", err)
	}
	return track("update", c.publish(ctx, parent))
}

func (c *Client) Delete(ctx context.Context, path string) error {
	if parent, key, err := store.Split(path); err == nil {
		removed, err := c.cli.HDel(ctx, dataPrefix+parent, key).Result()
		if err != nil {
			return track("delete", err)
		}
		if removed > 0 {
			if err := c.publish(ctx, parent); err != nil {
				return track("delete", err)
			}
		}
	}

	// Remove the subtree when path names a collection.
	var keys []string
	iter := c.cli.Scan(ctx, 0, dataPrefix+path+"/*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return track("delete", err)
	}
	keys = append(keys, dataPrefix+path)
	removed, err := c.cli.Del(ctx, keys...).Result()
	if err != nil {
		return track("delete", err)
	}
	if removed > 0 {
		return track("delete", c.publish(ctx, path))
	}
	return track("delete", nil)
}

func (c *Client) Push(ctx context.Context, path string, value map[string]any) (string, error) {
	now, err := c.ServerNow(ctx)
	if err != nil {
		return "", track("push", err)
	}
	raw, err := json.Marshal(store.ResolveTimestamps(value, now))
	if err != nil {
		return "", err
	}
	key := store.PushKey(now)
	if err := c.cli.HSet(ctx, dataPrefix+path, key, raw).Err(); err != nil {
		return "", track("push", err)
	}
	return key, track("push", c.publish(ctx, path))
}

func (c *Client) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	values, err := c.cli.HGetAll(ctx, dataPrefix+path).Result()
	if err != nil {
		return nil, track("children", err)
	}
	children := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		children[key] = json.RawMessage(value)
	}
	return children, track("children", nil)
}

func (c *Client) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, func(), error) {
	pubsub := c.cli.Subscribe(ctx, changedPrefix+path)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, track("subscribe", err)
	}

	out := make(chan store.Snapshot, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		emit := func() {
			children, err := c.Children(ctx, path)
			if err != nil {
				log.Printf("store: snapshot read failed path=%s: %v", path, err)
				return
			}
			snap := store.Snapshot{Path: path, Children: children}
			select {
			case out <- snap:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- snap:
				default:
				}
			}
		}

		emit()
		messages := pubsub.Channel()
		for {
			select {
			case _, ok := <-messages:
				if !ok {
					return
				}
				emit()
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, track("subscribe", nil)
}

func (c *Client) OnDisconnect(ctx context.Context, sessionID, path string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return track("on_disconnect", c.cli.HSet(ctx, disconnectPrefix+sessionID, path, raw).Err())
}

func (c *Client) CancelDisconnect(ctx context.Context, sessionID string) error {
	return track("cancel_disconnect", c.cli.Del(ctx, disconnectPrefix+sessionID).Err())
}

func (c *Client) FireDisconnect(ctx context.Context, sessionID string) error {
	armed, err := c.cli.HGetAll(ctx, disconnectPrefix+sessionID).Result()
	if err != nil {
		return track("fire_disconnect", err)
	}
	for path, rawFields := range armed {
		fields, err := decodeArmedFields(json.RawMessage(rawFields))
		if err != nil {
			log.Printf("store: dropping unreadable disconnect op path=%s: %v", path, err)
			continue
		}
		if err := c.Update(ctx, path, fields); err != nil {
			return track("fire_disconnect", err)
		}
	}
	return track("fire_disconnect", c.cli.Del(ctx, disconnectPrefix+sessionID).Err())
}

func (c *Client) ServerNow(ctx context.Context) (int64, error) {
	now, err := c.cli.Time(ctx).Result()
	if err != nil {
		return 0, track("server_now", err)
	}
	return now.UnixMilli(), nil
}

// patch read-modify-writes one record. Concurrent patches of the same
// record follow last-write-wins, like every other path write.
func (c *Client) patch(ctx context.Context, path string, fields map[string]any) error {
	parent, key, err := store.Split(path)
	if err != nil {
		return err
	}
	record := make(map[string]any)
	raw, err := c.cli.HGet(ctx, dataPrefix+parent, key).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return err
		}
	}
	for field, value := range fields {
		store.PatchField(record, field, value)
	}
	updated, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.cli.HSet(ctx, dataPrefix+parent, key, updated).Err()
}

func (c *Client) publish(ctx context.Context, path string) error {
	return c.cli.Publish(ctx, changedPrefix+path, "changed").Err()
}

func decodeArmedFields(raw json.RawMessage) (map[string]any, error) {
	var encoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(encoded))
	for key, value := range encoded {
		if store.IsServerTimestamp(value) {
			fields[key] = store.ServerTimestamp
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil, err
		}
		fields[key] = decoded
	}
	return fields, nil
}

func track(op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.IncStoreOp(op, outcome)
	return err
}
