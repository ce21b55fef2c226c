package model

import "time"

// Room is a shared playback session. One host controls the settings and
// carries the linked Spotify credential; any number of guests join by code.
//
// Fields:
//  Code          – short unique identifier, primary identity of the room.
//  HostSessionID – session that created the room; immutable. The room is
//                  torn down when this session leaves.
//  VotesToSkip   – number of distinct voters required to skip a track (>= 1).
//  GuestCanPause – whether non-host sessions may call play/pause.
//  CreatedAt     – creation timestamp, set once.
type Room struct {
	Code          string    `json:"code"`
	HostSessionID string    `json:"-"`
	VotesToSkip   int       `json:"votes_to_skip"`
	GuestCanPause bool      `json:"guest_can_pause"`
	CreatedAt     time.Time `json:"created_at"`
}
