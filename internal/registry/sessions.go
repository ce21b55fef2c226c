package registry

import (
	"sync"

	"github.com/iliyamo/party-rooms/internal/model"
)

// SessionStore maps opaque session identities to room bindings. A session is
// in at most one room; the role is recomputed from the room record on every
// read instead of being cached, so a host transfer bug can never leave a
// stale is_host flag behind.
type SessionStore struct {
	mu    sync.RWMutex
	codes map[string]string // session id -> room code
	rooms *RoomStore
}

// NewSessionStore returns an empty directory backed by the given room store.
func NewSessionStore(rooms *RoomStore) *SessionStore {
	return &SessionStore{codes: make(map[string]string), rooms: rooms}
}

// Resolve returns the session's current binding. A session with no binding,
// or one bound to a room that has since been removed, resolves to "not in a
// room" rather than an error.
func (d *SessionStore) Resolve(sessionID string) model.Session {
	d.mu.RLock()
	code, ok := d.codes[sessionID]
	d.mu.RUnlock()
	if !ok {
		return model.Session{ID: sessionID}
	}
	room, err := d.rooms.Get(code)
	if err != nil {
		// Room vanished under us; drop the dangling binding.
		d.mu.Lock()
		if cur, ok := d.codes[sessionID]; ok && cur == code {
			delete(d.codes, sessionID)
		}
		d.mu.Unlock()
		return model.Session{ID: sessionID}
	}
	return model.Session{ID: sessionID, RoomCode: code, Role: roleFor(sessionID, room)}
}

// Join binds the session to the room with the given code. A session already
// bound elsewhere is rebound; there is no explicit leave step required. The
// new binding is visible to Resolve as soon as Join returns.
func (d *SessionStore) Join(sessionID, code string) (model.Session, error) {
	room, err := d.rooms.Get(code)
	if err != nil {
		return model.Session{}, err
	}
	d.mu.Lock()
	d.codes[sessionID] = code
	d.mu.Unlock()
	return model.Session{ID: sessionID, RoomCode: code, Role: roleFor(sessionID, room)}, nil
}

// Bind records a binding without checking room existence. Used by room
// creation, where the room was just allocated under the registry lock.
func (d *SessionStore) Bind(sessionID, code string) {
	d.mu.Lock()
	d.codes[sessionID] = code
	d.mu.Unlock()
}

// Leave clears the session's binding. When the departing session hosts the
// room, the room itself is removed and every guest binding to it is evicted;
// their next Resolve reports "not in a room". Guest departures leave the
// room running. The returned code is empty when the session had no binding.
func (d *SessionStore) Leave(sessionID string) (code string, wasHost bool) {
	d.mu.Lock()
	code, ok := d.codes[sessionID]
	if !ok {
		d.mu.Unlock()
		return "", false
	}
	delete(d.codes, sessionID)
	d.mu.Unlock()

	room, err := d.rooms.Get(code)
	if err != nil {
		return code, false
	}
	if room.HostSessionID != sessionID {
		return code, false
	}
	d.rooms.Remove(code)
	d.evict(code)
	return code, true
}

// evict clears every binding to the given room code.
func (d *SessionStore) evict(code string) {
	d.mu.Lock()
	for sid, c := range d.codes {
		if c == code {
			delete(d.codes, sid)
		}
	}
	d.mu.Unlock()
}

func roleFor(sessionID string, room model.Room) string {
	if room.HostSessionID == sessionID {
		return model.RoleHost
	}
	return model.RoleGuest
}
