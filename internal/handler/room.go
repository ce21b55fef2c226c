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

// RoomHandler bundles the stores behind the room lifecycle endpoints.
type RoomHandler struct {
	Rooms    *registry.RoomStore
	Sessions *registry.SessionStore
	Votes    *service.VoteEngine
	Player   *spotify.Proxy
}

func NewRoomHandler(rooms *registry.RoomStore, sessions *registry.SessionStore, votes *service.VoteEngine, player *spotify.Proxy) *RoomHandler {
	if rooms == nil || sessions == nil || votes == nil {
		panic("nil dependency passed to NewRoomHandler")
	}
	return &RoomHandler{Rooms: rooms, Sessions: sessions, Votes: votes, Player: player}
}

// ----- DTOs -----

type createRoomReq struct {
	VotesToSkip   int  `json:"votes_to_skip"`
	GuestCanPause bool `json:"guest_can_pause"`
}
type updateRoomReq struct {
	Code          string `json:"code"`
	VotesToSkip   *int   `json:"votes_to_skip"`
	GuestCanPause *bool  `json:"guest_can_pause"`
}
type joinRoomReq struct {
	Code string `json:"code"`
}
type roomResp struct {
	Code          string    `json:"code"`
	VotesToSkip   int       `json:"votes_to_skip"`
	GuestCanPause bool      `json:"guest_can_pause"`
	CreatedAt     time.Time `json:"created_at"`
	IsHost        bool      `json:"is_host"`
}

func toRoomResp(r model.Room, sessionID string) roomResp {
	return roomResp{
		Code:          r.Code,
		VotesToSkip:   r.VotesToSkip,
		GuestCanPause: r.GuestCanPause,
		CreatedAt:     r.CreatedAt,
		IsHost:        r.HostSessionID == sessionID,
	}
}

// publishAsync fires a room event toward the broker without holding up the
// request. Publish failures are logged inside the publisher and dropped.
func publishAsync(ev queue.RoomEvent) {
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.PublishRoomEvent(ctx, ev)
	}()
}

// closeRoom drops the per-room state that dies with the host: the vote
// tally, the playback cache entry and the broker-facing closed event.
func (h *RoomHandler) closeRoom(code, hostSessionID string) {
	h.Votes.Discard(code)
	if h.Player != nil {
		h.Player.Forget(code)
	}
	publishAsync(queue.RoomEvent{
		Type:          queue.EventRoomClosed,
		RoomCode:      code,
		HostSessionID: hostSessionID,
	})
}

// Create handles POST /api/create-room. Every call allocates a fresh code;
// a caller that already hosts a room implicitly leaves it first, so the old
// room is torn down exactly as an explicit leave would tear it down.
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.VotesToSkip < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "votes_to_skip must be at least 1"})
	}

	sid := middleware.SessionID(c)
	if old, wasHost := h.Sessions.Leave(sid); wasHost && old != "" {
		h.closeRoom(old, sid)
	}

	room, err := h.Rooms.Create(sid, req.VotesToSkip, req.GuestCanPause)
	if err != nil {
		if errors.Is(err, registry.ErrCodeSpaceExhausted) {
			c.Logger().Errorf("room code space exhausted: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not allocate room code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	h.Sessions.Bind(sid, room.Code)

	publishAsync(queue.RoomEvent{
		Type:          queue.EventRoomCreated,
		RoomCode:      room.Code,
		HostSessionID: sid,
		VotesToSkip:   room.VotesToSkip,
		GuestCanPause: room.GuestCanPause,
	})
	return c.JSON(http.StatusCreated, toRoomResp(room, sid))
}

// Get handles GET /api/get-room?code=X and includes the caller's is_host
// flag, recomputed from the room record on every request.
func (h *RoomHandler) Get(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code parameter required"})
	}
	room, err := h.Rooms.Get(code)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	return c.JSON(http.StatusOK, toRoomResp(room, middleware.SessionID(c)))
}

// Update handles PATCH /api/update-room. Only the host may change settings;
// omitted fields keep their current values.
func (h *RoomHandler) Update(c echo.Context) error {
	var req updateRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	if req.VotesToSkip != nil && *req.VotesToSkip < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "votes_to_skip must be at least 1"})
	}

	sid := middleware.SessionID(c)
	room, err := h.Rooms.Update(req.Code, sid, registry.RoomUpdate{
		VotesToSkip:   req.VotesToSkip,
		GuestCanPause: req.GuestCanPause,
	})
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, registry.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the host may update the room"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update room failed"})
	}
	return c.JSON(http.StatusOK, toRoomResp(room, sid))
}

// Join handles POST /api/join-room. A session bound to another room is
// rebound; joining is an implicit leave of the previous room.
func (h *RoomHandler) Join(c echo.Context) error {
	var req joinRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	sess, err := h.Sessions.Join(middleware.SessionID(c), req.Code)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid room code"})
	}
	return c.JSON(http.StatusOK, echo.Map{"code": sess.RoomCode, "role": sess.Role})
}

// Leave handles POST /api/leave-room. A departing host tears the room down:
// guest bindings are evicted, the vote tally and playback cache dropped.
// Leaving while not in a room still succeeds.
func (h *RoomHandler) Leave(c echo.Context) error {
	sid := middleware.SessionID(c)
	code, wasHost := h.Sessions.Leave(sid)
	if wasHost && code != "" {
		h.closeRoom(code, sid)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "left room"})
}

// UserInRoom handles GET /api/user-in-room and reports the caller's current
// room code, or null when the session has no binding.
func (h *RoomHandler) UserInRoom(c echo.Context) error {
	sess := h.Sessions.Resolve(middleware.SessionID(c))
	if !sess.InRoom() {
		return c.JSON(http.StatusOK, echo.Map{"code": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"code": sess.RoomCode})
}
