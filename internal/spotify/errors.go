// Package spotify bridges room-scoped playback commands to the Spotify Web
// API using the room host's linked credential, and keeps a short-lived
// per-room cache of the current playback state so a room full of polling
// guests produces one upstream request per second instead of one each.
package spotify

import (
	"errors"
	"fmt"
)

// ErrNotLinked is returned when a room's host has no stored credential, or
// the stored refresh token is no longer accepted. The host must complete
// the consent flow before playback commands can work.
var ErrNotLinked = errors.New("spotify account not linked")

// ProviderError wraps an upstream failure: a non-2xx status, a timeout or a
// transport error. It is surfaced to the caller as a transient failure and
// never retried here; the client's polling cadence is the retry policy.
type ProviderError struct {
	Op     string // which call failed, e.g. "player", "next"
	Status int    // HTTP status from Spotify, 0 on transport errors
	Err    error  // underlying error, if any
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spotify %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("spotify %s: status %d", e.Op, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
