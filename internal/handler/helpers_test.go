package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/party-rooms/internal/model"
	"github.com/iliyamo/party-rooms/internal/registry"
	"github.com/iliyamo/party-rooms/internal/service"
	"github.com/iliyamo/party-rooms/internal/spotify"
)

// fakeCreds is an in-memory spotify.CredentialStore.
type fakeCreds struct {
	mu     sync.Mutex
	tokens map[string]model.ProviderToken
}

func newFakeCreds() *fakeCreds { return &fakeCreds{tokens: make(map[string]model.ProviderToken)} }

func (m *fakeCreds) Get(ctx context.Context, sessionID string) (model.ProviderToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[sessionID]
	if !ok {
		return model.ProviderToken{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *fakeCreds) Upsert(ctx context.Context, sessionID, accessToken, refreshToken, tokenType string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[sessionID] = model.ProviderToken{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
	}
	return nil
}

// fakeProvider fakes the Spotify Web API, counting playback commands.
type fakeProvider struct {
	playerHits atomic.Int32
	nextHits   atomic.Int32
	pauseHits  atomic.Int32
	playHits   atomic.Int32
	trackID    atomic.Value // string; what /me/player currently reports
}

func (f *fakeProvider) currentTrackID() string {
	if v, ok := f.trackID.Load().(string); ok {
		return v
	}
	return "track-1"
}

func (f *fakeProvider) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/me/player" && r.Method == http.MethodGet:
			f.playerHits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"progress_ms": 1000, "is_playing": true, "item": {
				"id": %q, "name": "Song", "duration_ms": 200000,
				"artists": [{"name": "Artist"}],
				"album": {"images": [{"url": "https://img.example/a.jpg"}]}}}`,
				f.currentTrackID())
		case r.URL.Path == "/me/player/next":
			f.nextHits.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/me/player/pause":
			f.pauseHits.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/me/player/play":
			f.playHits.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// stack wires the full set of stores and handlers against a fake provider.
type stack struct {
	e        *echo.Echo
	rooms    *registry.RoomStore
	sessions *registry.SessionStore
	votes    *service.VoteEngine
	provider *fakeProvider
	creds    *fakeCreds
	roomH    *RoomHandler
	spotifyH *SpotifyHandler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	provider := &fakeProvider{}
	srv := httptest.NewServer(provider.handler())
	t.Cleanup(srv.Close)

	rooms := registry.NewRoomStore(registry.NewCodeGenerator("", 0))
	sessions := registry.NewSessionStore(rooms)
	creds := newFakeCreds()
	client := spotify.NewClient(spotify.ClientConfig{
		ClientID: "id", ClientSecret: "secret",
		RedirectURI: "http://localhost/spotify/redirect",
		APIURL:      srv.URL, AccountsURL: srv.URL,
	})
	// A generous cache ttl keeps the provider hit counts deterministic;
	// tests that need a refetch call proxy.Forget.
	player := spotify.NewProxy(client, creds, rooms, time.Minute)
	votes := service.NewVoteEngine(rooms, player)

	return &stack{
		e:        echo.New(),
		rooms:    rooms,
		sessions: sessions,
		votes:    votes,
		provider: provider,
		creds:    creds,
		roomH:    NewRoomHandler(rooms, sessions, votes, player),
		spotifyH: NewSpotifyHandler(rooms, sessions, votes, player, "/"),
	}
}

// linkHost stores a valid credential for the given session.
func (s *stack) linkHost(t *testing.T, sessionID string) {
	t.Helper()
	err := s.creds.Upsert(context.Background(), sessionID,
		"access-token", "refresh-token", "Bearer", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("linkHost failed: %v", err)
	}
}

// request runs one handler invocation as the given session and returns the
// recorder.
func (s *stack) request(t *testing.T, sessionID, method, target, body string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("session_id", sessionID)
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

// createRoom drives the create-room endpoint and returns the new code.
func (s *stack) createRoom(t *testing.T, sessionID string, votesToSkip int, guestCanPause bool) string {
	t.Helper()
	body := fmt.Sprintf(`{"votes_to_skip": %d, "guest_can_pause": %t}`, votesToSkip, guestCanPause)
	rec := s.request(t, sessionID, http.MethodPost, "/api/create-room", body, s.roomH.Create)
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("create-room status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	code, _ := resp["code"].(string)
	if code == "" {
		t.Fatalf("create-room returned no code: %s", rec.Body.String())
	}
	return code
}

func (s *stack) joinRoom(t *testing.T, sessionID, code string) {
	t.Helper()
	rec := s.request(t, sessionID, http.MethodPost, "/api/join-room",
		fmt.Sprintf(`{"code": %q}`, code), s.roomH.Join)
	if rec.Code != http.StatusOK {
		t.Fatalf("join-room status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}
