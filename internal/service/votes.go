// Package service holds the coordination logic that sits between the HTTP
// handlers and the stores: the vote-to-skip engine and the room event
// publisher.
package service

import (
	"context"
	"sync"

	"github.com/iliyamo/party-rooms/internal/registry"
)

// Skipper issues a skip command for a room. Satisfied by *spotify.Proxy.
type Skipper interface {
	Skip(ctx context.Context, code string) error
}

// tally is the voter set for one room's current track.
type tally struct {
	trackID string
	voters  map[string]struct{}
}

// VoteEngine keeps a per-room tally of skip requests for the track that is
// currently playing. A single mutex guards the whole tally map: vote
// registration and the threshold check happen in one critical section, so
// two concurrent votes cannot both observe "one below threshold" and
// neither fire, nor both fire.
type VoteEngine struct {
	mu      sync.Mutex
	tallies map[string]*tally // keyed by room code
	rooms   *registry.RoomStore
	player  Skipper
}

// NewVoteEngine returns an engine reading thresholds from rooms and issuing
// skips through player.
func NewVoteEngine(rooms *registry.RoomStore, player Skipper) *VoteEngine {
	return &VoteEngine{
		tallies: make(map[string]*tally),
		rooms:   rooms,
		player:  player,
	}
}

// Register records sessionID's skip request for trackID in the given room.
// Voting twice for the same track is a no-op, and the host's vote counts
// like anyone else's. When the number of distinct voters reaches the room's
// threshold the tally is discarded and exactly one skip command is issued;
// the next track starts from an empty tally. The skip call itself runs
// outside the lock so a slow provider cannot stall other rooms' votes.
func (e *VoteEngine) Register(ctx context.Context, code, trackID, sessionID string) (skipped bool, votes, required int, err error) {
	room, err := e.rooms.Get(code)
	if err != nil {
		return false, 0, 0, err
	}

	e.mu.Lock()
	t := e.tallies[code]
	if t == nil || t.trackID != trackID {
		// First vote for this track, or the track changed since the last
		// vote; stale voters get no carry-over.
		t = &tally{trackID: trackID, voters: make(map[string]struct{})}
		e.tallies[code] = t
	}
	t.voters[sessionID] = struct{}{}
	votes = len(t.voters)
	required = room.VotesToSkip
	fire := votes >= required
	if fire {
		delete(e.tallies, code)
	}
	e.mu.Unlock()

	if !fire {
		return false, votes, required, nil
	}
	if err := e.player.Skip(ctx, code); err != nil {
		return false, votes, required, err
	}
	return true, votes, required, nil
}

// Observe tells the engine which track a poll saw. If the room's tally was
// collected for a different track it is discarded unconditionally.
func (e *VoteEngine) Observe(code, trackID string) {
	e.mu.Lock()
	if t, ok := e.tallies[code]; ok && t.trackID != trackID {
		delete(e.tallies, code)
	}
	e.mu.Unlock()
}

// Count returns the number of votes collected for trackID in the room.
// Zero when the tally belongs to another track or does not exist.
func (e *VoteEngine) Count(code, trackID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tallies[code]; ok && t.trackID == trackID {
		return len(t.voters)
	}
	return 0
}

// Discard drops the room's tally entirely. Called on room teardown.
func (e *VoteEngine) Discard(code string) {
	e.mu.Lock()
	delete(e.tallies, code)
	e.mu.Unlock()
}
