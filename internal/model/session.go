package model

// Role of a session relative to the room it is bound to. The role is always
// derived from the room's HostSessionID, never stored on its own.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Session binds an opaque client identity to at most one room at a time.
//
// Fields:
//  ID       – opaque identifier issued on the client's first contact.
//  RoomCode – code of the room the session is in; empty when not in a room.
//  Role     – RoleHost or RoleGuest; empty when not in a room.
type Session struct {
	ID       string `json:"-"`
	RoomCode string `json:"room_code,omitempty"`
	Role     string `json:"role,omitempty"`
}

// InRoom reports whether the session is currently bound to a room.
func (s Session) InRoom() bool { return s.RoomCode != "" }
