package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/party-rooms/internal/middleware"
	"github.com/iliyamo/party-rooms/internal/model"
	"github.com/iliyamo/party-rooms/internal/queue"
	"github.com/iliyamo/party-rooms/internal/registry"
	"github.com/iliyamo/party-rooms/internal/service"
	"github.com/iliyamo/party-rooms/internal/spotify"
)

// SpotifyHandler serves the provider-facing endpoints: the consent flow,
// the playback poll and the playback commands. All playback acts on the
// room the caller is bound to, with the host's credential.
type SpotifyHandler struct {
	Rooms       *registry.RoomStore
	Sessions    *registry.SessionStore
	Votes       *service.VoteEngine
	Player      *spotify.Proxy
	FrontendURL string
}

func NewSpotifyHandler(rooms *registry.RoomStore, sessions *registry.SessionStore, votes *service.VoteEngine, player *spotify.Proxy, frontendURL string) *SpotifyHandler {
	if rooms == nil || sessions == nil || votes == nil || player == nil {
		panic("nil dependency passed to NewSpotifyHandler")
	}
	if frontendURL == "" {
		frontendURL = "/"
	}
	return &SpotifyHandler{Rooms: rooms, Sessions: sessions, Votes: votes, Player: player, FrontendURL: frontendURL}
}

type currentSongResp struct {
	model.PlaybackState
	Votes         int `json:"votes"`
	VotesRequired int `json:"votes_required"`
}

// playbackErr translates provider-layer failures into responses. NotLinked
// means the host has to run the consent flow first; provider failures are
// transient and left to the client's polling cadence to retry.
func playbackErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, spotify.ErrNotLinked):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "spotify not linked"})
	case spotify.IsProviderError(err):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "provider unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "playback request failed"})
	}
}

// requireRoom resolves the caller's binding and fails with 404 when the
// session is not in a room.
func (h *SpotifyHandler) requireRoom(c echo.Context) (model.Session, bool) {
	sess := h.Sessions.Resolve(middleware.SessionID(c))
	return sess, sess.InRoom()
}

// CurrentSong handles GET /spotify/current-song, the 1 Hz poll every room
// member runs. The response is the cached playback state plus the running
// vote tally; 204 means nothing is playing right now.
func (h *SpotifyHandler) CurrentSong(c echo.Context) error {
	sess, ok := h.requireRoom(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not in a room"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	state, err := h.Player.CurrentTrack(ctx, sess.RoomCode)
	if err != nil {
		return playbackErr(c, err)
	}
	if state == nil {
		return c.NoContent(http.StatusNoContent)
	}

	// Every poll doubles as track-change detection for the vote tally.
	h.Votes.Observe(sess.RoomCode, state.TrackID)

	room, err := h.Rooms.Get(sess.RoomCode)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	return c.JSON(http.StatusOK, currentSongResp{
		PlaybackState: *state,
		Votes:         h.Votes.Count(sess.RoomCode, state.TrackID),
		VotesRequired: room.VotesToSkip,
	})
}

// Play handles PUT /spotify/play. Guests are rejected when the room's
// guest_can_pause setting is off; the stored flag is enforced here rather
// than trusted to the view layer.
func (h *SpotifyHandler) Play(c echo.Context) error {
	return h.transportControl(c, h.Player.Play)
}

// Pause handles PUT /spotify/pause under the same authorization rule as Play.
func (h *SpotifyHandler) Pause(c echo.Context) error {
	return h.transportControl(c, h.Player.Pause)
}

func (h *SpotifyHandler) transportControl(c echo.Context, cmd func(context.Context, string) error) error {
	sess, ok := h.requireRoom(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not in a room"})
	}
	room, err := h.Rooms.Get(sess.RoomCode)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	if sess.Role != model.RoleHost && !room.GuestCanPause {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "guests may not control playback in this room"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	if err := cmd(ctx, sess.RoomCode); err != nil {
		return playbackErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Skip handles POST /spotify/skip. The request registers a vote for the
// currently playing track; the actual skip fires only when the room's
// threshold is reached. The host's request goes through the same tally.
func (h *SpotifyHandler) Skip(c echo.Context) error {
	sess, ok := h.requireRoom(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not in a room"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	state, err := h.Player.CurrentTrack(ctx, sess.RoomCode)
	if err != nil {
		return playbackErr(c, err)
	}
	if state == nil {
		// Nothing playing, nothing to vote on.
		return c.NoContent(http.StatusNoContent)
	}

	skipped, votes, required, err := h.Votes.Register(ctx, sess.RoomCode, state.TrackID, sess.ID)
	if err != nil {
		return playbackErr(c, err)
	}
	if skipped {
		publishAsync(queue.RoomEvent{
			Type:     queue.EventSkipExecuted,
			RoomCode: sess.RoomCode,
			TrackID:  state.TrackID,
			Votes:    votes,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"votes":          votes,
		"votes_required": required,
		"skipped":        skipped,
	})
}

// IsAuthenticated handles GET /spotify/is-authenticated and reports whether
// the calling session has a usable provider credential.
func (h *SpotifyHandler) IsAuthenticated(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	status := h.Player.IsAuthenticated(ctx, middleware.SessionID(c))
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// GetAuthURL handles GET /spotify/get-auth-url. The caller's session id is
// used as the OAuth state so the callback can be matched to it.
func (h *SpotifyHandler) GetAuthURL(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"url": h.Player.AuthURL(middleware.SessionID(c))})
}

// Callback handles GET /spotify/redirect, the consent-flow return leg. On
// success the token pair is stored under the linking session and the
// browser is sent back to the frontend.
func (h *SpotifyHandler) Callback(c echo.Context) error {
	if derr := c.QueryParam("error"); derr != "" {
		// Host declined consent; nothing to store.
		return c.Redirect(http.StatusFound, h.FrontendURL)
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code parameter required"})
	}
	sid := middleware.SessionID(c)
	if state := c.QueryParam("state"); state != "" && state != sid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state mismatch"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	if err := h.Player.ExchangeAndStore(ctx, sid, code); err != nil {
		return playbackErr(c, err)
	}
	return c.Redirect(http.StatusFound, h.FrontendURL)
}
