package models

// Message kinds.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageSystem = "system"
)

// Message is one channel message stored at messages/{channel}/{id}. Sender
// display fields are snapshots taken at send time, not live joins.
// DeletedFor maps viewer ids that soft-deleted the message; IsUnsent marks
// the "deleted for everyone" placeholder.
type Message struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName"`
	SenderPhoto string          `json:"senderPhoto,omitempty"`
	Text        string          `json:"text"`
	ImageURL    string          `json:"imageURL,omitempty"`
	Type        string          `json:"type"`
	Timestamp   int64           `json:"timestamp"`
	DeletedFor  map[string]bool `json:"deletedFor,omitempty"`
	IsUnsent    bool            `json:"isUnsent,omitempty"`
}

// VisibleTo reports whether the viewer soft-deleted the message.
func (m Message) VisibleTo(viewerID string) bool {
	return !m.DeletedFor[viewerID]
}
