package models

import "encoding/json"

// Channel kinds.
const (
	ChannelPublic  = "public"
	ChannelPrivate = "private"
	ChannelDM      = "dm"
)

// Channel is a named message scope stored at channels/{id}. Members is
// meaningful for private/dm channels only.
type Channel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

// VisibleTo reports whether the viewer may see the channel: public channels
// are visible to everyone, private/dm channels to members only.
func (c Channel) VisibleTo(viewerID string) bool {
	if c.Kind == ChannelPublic {
		return true
	}
	for _, member := range c.Members {
		if member == viewerID {
			return true
		}
	}
	return false
}

// HasMemberSet compares the channel's member set with the given ids,
// ignoring order and duplicates.
func (c Channel) HasMemberSet(ids []string) bool {
	if len(memberSet(c.Members)) != len(memberSet(ids)) {
		return false
	}
	set := memberSet(c.Members)
	for id := range memberSet(ids) {
		if !set[id] {
			return false
		}
	}
	return true
}

func memberSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// channelRecord is the stored shape. The store may hand back members as a
// flat list or as a sparse map (list with holes); both decode to a set.
type channelRecord struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Members     json.RawMessage `json:"members"`
	CreatedAt   int64           `json:"createdAt"`
}

// DecodeChannel maps one stored record onto a Channel.
func DecodeChannel(id string, raw json.RawMessage) (Channel, error) {
	var record channelRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return Channel{}, err
	}
	return Channel{
		ID:          id,
		Name:        record.Name,
		Kind:        record.Kind,
		Description: record.Description,
		Members:     NormalizeMembers(record.Members),
		CreatedAt:   record.CreatedAt,
	}, nil
}

// NormalizeMembers coerces a stored member list into a flat slice. Accepted
// shapes: JSON array of ids, map of index/id keys to id strings, or map of
// id keys to booleans.
func NormalizeMembers(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return compactMembers(list)
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err == nil {
		ids := make([]string, 0, len(byKey))
		for _, id := range byKey {
			ids = append(ids, id)
		}
		return compactMembers(ids)
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err == nil {
		ids := make([]string, 0, len(flags))
		for id, present := range flags {
			if present {
				ids = append(ids, id)
			}
		}
		return compactMembers(ids)
	}
	return nil
}

func compactMembers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}
