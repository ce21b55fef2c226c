// Package registry holds the live room and session state of the service.
// This file defines the sentinel errors shared by the stores. Handlers
// translate them into HTTP responses: ErrRoomNotFound becomes 404,
// ErrForbidden 403 and ErrCodeSpaceExhausted a logged 500, since an
// exhausted code space is a configuration problem rather than a bad
// request.
package registry

import "errors"

// ErrRoomNotFound is returned when no live room exists for a code.
var ErrRoomNotFound = errors.New("room not found")

// ErrForbidden is returned when a session that is not the host of a room
// attempts to mutate its settings.
var ErrForbidden = errors.New("forbidden")

// ErrCodeSpaceExhausted is returned when the code generator cannot find an
// unused code within its retry bound. It indicates the configured alphabet
// and length are too small for the number of live rooms.
var ErrCodeSpaceExhausted = errors.New("room code space exhausted")
