package models

// TypingMarker is the ephemeral per-(channel,user) record at
// typing/{channel}/{uid}. Readers treat markers older than the staleness
// window as gone even if not yet physically removed.
type TypingMarker struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Typer is one active typist as surfaced to viewers.
type Typer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
