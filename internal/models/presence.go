package models

// Presence states.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Presence is the live connection record for one user, stored at
// status/{uid}. LastChanged is a server-assigned millisecond timestamp.
type Presence struct {
	UID         string `json:"uid"`
	State       string `json:"state"`
	LastChanged int64  `json:"last_changed"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}
