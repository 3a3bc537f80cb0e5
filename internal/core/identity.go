package core

import "github.com/rentwire/rentwire-server/internal/store"

// Identity is the authenticated actor derived from a verified credential.
// It lives only as long as the request or connection it was derived for.
type Identity struct {
	UserID int64
	Email  string
	Role   store.Role
	RoomID string // tenant room affiliation; empty for landlords
}

// CanAddress reports whether the identity may join or publish to a room
// without being subscribed to it. Landlords administer every tenant room;
// a tenant may only address its own.
func (id Identity) CanAddress(roomID string) bool {
	if roomID == "" {
		return false
	}
	if id.Role == store.RoleLandlord {
		return true
	}
	return id.RoomID != "" && id.RoomID == roomID
}
