// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the room.events queue.
const (
	EventRoomCreated  = "room_created"
	EventRoomClosed   = "room_closed"
	EventSkipExecuted = "skip_executed"
)

// RoomEvent is published on room lifecycle changes and executed skips. It
// carries enough information for downstream consumers to log or trigger
// analytics without reaching back into the service's live state.
type RoomEvent struct {
	Type          string `json:"type"`
	RoomCode      string `json:"room_code"`
	HostSessionID string `json:"host_session_id"`
	VotesToSkip   int    `json:"votes_to_skip,omitempty"`
	GuestCanPause bool   `json:"guest_can_pause,omitempty"`
	TrackID       string `json:"track_id,omitempty"`
	Votes         int    `json:"votes,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
