package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/party-rooms/internal/handler" // import the handlers that implement the endpoints
)

// RegisterRoutes registers routes that carry no room or provider state.
// Currently it exposes only a health check, used by load balancers and
// monitoring systems to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterRooms registers the room lifecycle endpoints under /api. All of
// them rely on the session middleware having established the caller's
// identity; authorization (host-only updates) is enforced inside the
// registry rather than per route, so it cannot be forgotten at a new call
// site.
func RegisterRooms(e *echo.Echo, h *handler.RoomHandler) {
	g := e.Group("/api")
	// Allocate a room and bind the caller as host.
	g.POST("/create-room", h.Create)
	// Read a room's settings plus the caller's is_host flag.
	g.GET("/get-room", h.Get)
	// Host-only partial settings update.
	g.PATCH("/update-room", h.Update)
	// Bind the caller to an existing room as guest.
	g.POST("/join-room", h.Join)
	// Clear the caller's binding; tears the room down when the host leaves.
	g.POST("/leave-room", h.Leave)
	// Report the caller's current room code, if any.
	g.GET("/user-in-room", h.UserInRoom)
}

// RegisterSpotify registers the provider endpoints under /spotify: the
// consent flow for the host and the playback poll and commands shared by
// the whole room.
func RegisterSpotify(e *echo.Echo, h *handler.SpotifyHandler) {
	g := e.Group("/spotify")
	// 1 Hz playback poll, served from the per-room cache.
	g.GET("/current-song", h.CurrentSong)
	// Transport controls; guests are gated by the room's guest_can_pause.
	g.PUT("/play", h.Play)
	g.PUT("/pause", h.Pause)
	// Registers a vote; skips when the room threshold is reached.
	g.POST("/skip", h.Skip)
	// Consent flow: status probe, consent URL and the OAuth callback.
	g.GET("/is-authenticated", h.IsAuthenticated)
	g.GET("/get-auth-url", h.GetAuthURL)
	g.GET("/redirect", h.Callback)
}
