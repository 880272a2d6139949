package room

import "github.com/google/uuid"

// UserIdentity is the stable opaque token a player presents across
// connections. Issued on first contact, it survives reconnects; at most
// one live connection is bound to it at a time (the gateway supersedes
// the old one when a new connection presents the same token).
type UserIdentity string

// IssueIdentity mints a fresh identity token.
func IssueIdentity() UserIdentity {
	return UserIdentity(uuid.NewString())
}

// Valid reports whether the token has the issued shape. Unknown but
// well-formed tokens are accepted; they simply match no room.
func (id UserIdentity) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
