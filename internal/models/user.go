package models

// User is the authenticated viewer identity consumed by the engine. The
// service never authenticates users itself; the record arrives via verified
// token claims.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoURL"`
}
