package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store is a path-addressable realtime database. Paths are slash-joined
// segments; the last segment of a record path names the record inside its
// parent collection ("status/u1", "messages/general/<key>"). Writes to a
// given path are serialized by the backend; concurrent writers follow
// last-write-wins. Subscriptions push a full child snapshot of the watched
// collection on every change beneath it.
type Store interface {
	// Put replaces the record at path.
	Put(ctx context.Context, path string, value map[string]any) error
	// Update patches individual fields of the record at path. Field names
	// may contain slashes to address nested values ("deletedFor/u1").
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the record at path, or the whole collection when path
	// names one. Deleting something that does not exist is not an error.
	Delete(ctx context.Context, path string) error
	// Push appends a record under the collection at path and returns its
	// server-assigned key. Keys sort lexicographically in insertion-time
	// order.
	Push(ctx context.Context, path string, value map[string]any) (string, error)
	// Children returns the records of the collection at path.
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
	// Subscribe emits a snapshot of the collection at path immediately and
	// after every change. The returned cancel func releases the
	// subscription; the channel is closed afterwards. Intermediate
	// snapshots may be coalesced; the latest one is always delivered.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error)

	// OnDisconnect arms a field patch for path that is applied when the
	// session disconnects. Armed ops persist until fired or cancelled.
	OnDisconnect(ctx context.Context, sessionID, path string, fields map[string]any) error
	// CancelDisconnect drops all armed ops for the session.
	CancelDisconnect(ctx context.Context, sessionID string) error
	// FireDisconnect applies and drops all armed ops for the session.
	// ServerTimestamp sentinels resolve at fire time.
	FireDisconnect(ctx context.Context, sessionID string) error

	// ServerNow returns the store's clock as Unix milliseconds.
	ServerNow(ctx context.Context) (int64, error)

	Close() error
}

// Snapshot is the state of one collection at a point in time.
type Snapshot struct {
	Path     string
	Children map[string]json.RawMessage
}

// ServerTimestamp marks a field to be filled with the store's clock at the
// moment the write (or armed disconnect op) is applied.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// MarshalJSON lets armed ops round-trip through the backend unresolved.
func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(serverTimestampJSON), nil
}

const serverTimestampJSON = `{"__sv":"timestamp"}`

// IsServerTimestamp reports whether a raw value is the unresolved sentinel.
func IsServerTimestamp(raw json.RawMessage) bool {
	return string(raw) == serverTimestampJSON
}

// ResolveTimestamps returns a copy of fields with sentinels replaced by now.
func ResolveTimestamps(fields map[string]any, now int64) map[string]any {
	resolved := make(map[string]any, len(fields))
	for key, value := range fields {
		if _, ok := value.(serverTimestamp); ok {
			resolved[key] = now
			continue
		}
		resolved[key] = value
	}
	return resolved
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split separates a record path into its parent collection and record key.
func Split(path string) (parent, key string, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", fmt.Errorf("store: %q is not a record path", path)
	}
	return path[:idx], path[idx+1:], nil
}

// PushKey generates a server-assigned record key. The millisecond prefix
// makes keys sort in insertion-time order; the random suffix keeps
// concurrent pushes within the same millisecond distinct.
func PushKey(nowMillis int64) string {
	return fmt.Sprintf("%013d-%s", nowMillis, uuid.NewString()[:8])
}

// PatchField applies one possibly-nested field patch to a decoded record.
func PatchField(record map[string]any, field string, value any) {
	segments := strings.Split(field, "/")
	node := record
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}
