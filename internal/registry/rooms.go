package registry

import (
	"sync"
	"time"

	"github.com/iliyamo/party-rooms/internal/model"
)

// RoomUpdate carries a partial settings change. Nil fields are left
// unchanged so a host can update one knob without restating the other.
type RoomUpdate struct {
	VotesToSkip   *int
	GuestCanPause *bool
}

// RoomStore owns all live room records, keyed by code. All mutations on the
// same code serialize on the store lock, which is what prevents lost updates
// when two requests race on a settings merge. Rooms live for the process
// lifetime only.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
	gen   *CodeGenerator
}

// NewRoomStore returns an empty store using the given code generator.
func NewRoomStore(gen *CodeGenerator) *RoomStore {
	if gen == nil {
		gen = NewCodeGenerator("", 0)
	}
	return &RoomStore{rooms: make(map[string]*model.Room), gen: gen}
}

// Create allocates a room with a fresh unique code and binds hostSessionID
// as its host. Creation is never idempotent: every call draws a new code.
// Callers that let a hosting session create again are expected to tear the
// old room down first, the same way an explicit leave would.
func (s *RoomStore) Create(hostSessionID string, votesToSkip int, guestCanPause bool) (model.Room, error) {
	if votesToSkip < 1 {
		votesToSkip = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return model.Room{}, err
	}
	room := &model.Room{
		Code:          code,
		HostSessionID: hostSessionID,
		VotesToSkip:   votesToSkip,
		GuestCanPause: guestCanPause,
		CreatedAt:     time.Now().UTC(),
	}
	s.rooms[code] = room
	return *room, nil
}

// uniqueCodeLocked retries generation until the code is unused. Callers must
// hold the write lock so the draw and the insert are atomic.
func (s *RoomStore) uniqueCodeLocked() (string, error) {
	for i := 0; i < codeRetryLimit; i++ {
		code, err := s.gen.Generate()
		if err != nil {
			return "", err
		}
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Get returns a copy of the room for code, or ErrRoomNotFound.
func (s *RoomStore) Get(code string) (model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	return *r, nil
}

// Update applies a partial settings merge. Only the host may mutate a room;
// any other requester gets ErrForbidden and the settings stay untouched.
func (s *RoomStore) Update(code, requesterSessionID string, u RoomUpdate) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	if r.HostSessionID != requesterSessionID {
		return model.Room{}, ErrForbidden
	}
	if u.VotesToSkip != nil {
		v := *u.VotesToSkip
		if v < 1 {
			v = 1
		}
		r.VotesToSkip = v
	}
	if u.GuestCanPause != nil {
		r.GuestCanPause = *u.GuestCanPause
	}
	return *r, nil
}

// Remove deletes the room and reports whether it existed. Deletion happens
// under the write lock, so every Get after Remove returns ErrRoomNotFound
// with no grace period.
func (s *RoomStore) Remove(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[code]
	delete(s.rooms, code)
	return ok
}

// Len reports the number of live rooms.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
