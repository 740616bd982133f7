package auth

// Identity is what the sync engine needs from the login flow: the bearer
// token for the API and websocket handshake, and the logged-in user id
// used to attribute messages.
type Identity struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
}

// Valid reports whether both fields are present.
func (id Identity) Valid() bool {
	return id.Token != "" && id.UserID != 0
}

// Provider supplies the current identity. The second return value is
// false when no user is logged in.
type Provider interface {
	Current() (Identity, bool)
}

// Static is a fixed-identity provider, used in tests and by frontends
// that manage credentials themselves.
type Static struct {
	Identity Identity
}

// Current implements Provider.
func (s Static) Current() (Identity, bool) {
	return s.Identity, s.Identity.Valid()
}
