package spotify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/party-rooms/internal/model"
	"github.com/iliyamo/party-rooms/internal/registry"
)

// memCreds is an in-memory CredentialStore for tests.
type memCreds struct {
	mu     sync.Mutex
	tokens map[string]model.ProviderToken
}

func newMemCreds() *memCreds { return &memCreds{tokens: make(map[string]model.ProviderToken)} }

func (m *memCreds) Get(ctx context.Context, sessionID string) (model.ProviderToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[sessionID]
	if !ok {
		return model.ProviderToken{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memCreds) Upsert(ctx context.Context, sessionID, accessToken, refreshToken, tokenType string, expiresAt time.Time) error {
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

const playbackJSON = `{
	"progress_ms": 4200,
	"is_playing": true,
	"item": {
		"id": "track-1",
		"name": "Test Song",
		"duration_ms": 180000,
		"artists": [{"name": "Artist A"}, {"name": "Artist B"}],
		"album": {"images": [{"url": "https://img.example/cover.jpg"}]}
	}
}`

// fakeUpstream stands in for the Spotify Web API, counting player fetches.
type fakeUpstream struct {
	playerHits atomic.Int32
	nextHits   atomic.Int32
	delay      time.Duration
	status     int    // non-zero forces this status on /me/player
	body       string // playback JSON served on /me/player
}

func (f *fakeUpstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/me/player" && r.Method == http.MethodGet:
			f.playerHits.Add(1)
			if f.delay > 0 {
				time.Sleep(f.delay)
			}
			if f.status != 0 {
				w.WriteHeader(f.status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, f.body)
		case r.URL.Path == "/me/player/next" && r.Method == http.MethodPost:
			f.nextHits.Add(1)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/me/player/pause" && r.Method == http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/me/player/play" && r.Method == http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestProxy(t *testing.T, up *fakeUpstream, ttl time.Duration) (*Proxy, *memCreds, string) {
	t.Helper()
	api := httptest.NewServer(up.handler())
	t.Cleanup(api.Close)

	rooms := registry.NewRoomStore(nil)
	room, err := rooms.Create("host-sid", 2, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	creds := newMemCreds()
	_ = creds.Upsert(context.Background(), "host-sid", "access-1", "refresh-1", "Bearer",
		time.Now().UTC().Add(time.Hour))

	client := NewClient(ClientConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/spotify/redirect",
		APIURL:       api.URL,
		AccountsURL:  api.URL, // tests that need the accounts flow override this
	})
	return NewProxy(client, creds, rooms, ttl), creds, room.Code
}

func TestCurrentTrackParsesPlayback(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON}
	p, _, code := newTestProxy(t, up, time.Minute)

	state, err := p.CurrentTrack(context.Background(), code)
	if err != nil {
		t.Fatalf("CurrentTrack failed: %v", err)
	}
	if state == nil {
		t.Fatal("expected a playback state")
	}
	if state.TrackID != "track-1" || state.Title != "Test Song" {
		t.Errorf("track mismatch: %+v", state)
	}
	if state.Artist != "Artist A, Artist B" {
		t.Errorf("artist = %q", state.Artist)
	}
	if state.ImageURL != "https://img.example/cover.jpg" {
		t.Errorf("image = %q", state.ImageURL)
	}
	if state.DurationMs != 180000 || state.ProgressMs != 4200 || !state.IsPlaying {
		t.Errorf("timing mismatch: %+v", state)
	}
}

func TestCurrentTrackServedFromCache(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON}
	p, _, code := newTestProxy(t, up, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := p.CurrentTrack(ctx, code); err != nil {
			t.Fatalf("poll %d failed: %v", i, err)
		}
	}
	if got := up.playerHits.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1", got)
	}
}

// TestCurrentTrackCoalescesConcurrentMisses has many pollers miss at once;
// they must share a single upstream fetch.
func TestCurrentTrackCoalescesConcurrentMisses(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON, delay: 50 * time.Millisecond}
	p, _, code := newTestProxy(t, up, time.Minute)

	const pollers = 8
	var wg sync.WaitGroup
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.CurrentTrack(context.Background(), code); err != nil {
				t.Errorf("CurrentTrack failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := up.playerHits.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1", got)
	}
}

func TestCurrentTrackNothingPlaying(t *testing.T) {
	up := &fakeUpstream{status: http.StatusNoContent}
	p, _, code := newTestProxy(t, up, time.Minute)

	state, err := p.CurrentTrack(context.Background(), code)
	if err != nil {
		t.Fatalf("CurrentTrack failed: %v", err)
	}
	if state != nil {
		t.Errorf("expected nil state, got %+v", state)
	}
	// The empty answer is cached like any other.
	if _, err := p.CurrentTrack(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	if got := up.playerHits.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1", got)
	}
}

func TestCurrentTrackUnknownRoom(t *testing.T) {
	p, _, _ := newTestProxy(t, &fakeUpstream{body: playbackJSON}, time.Minute)
	_, err := p.CurrentTrack(context.Background(), "NOSUCH")
	if !errors.Is(err, registry.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestNotLinkedWithoutCredential(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON}
	api := httptest.NewServer(up.handler())
	t.Cleanup(api.Close)

	rooms := registry.NewRoomStore(nil)
	room, _ := rooms.Create("host-sid", 2, false)
	p := NewProxy(NewClient(ClientConfig{APIURL: api.URL, AccountsURL: api.URL}), newMemCreds(), rooms, time.Minute)

	if _, err := p.CurrentTrack(context.Background(), room.Code); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
	if err := p.Skip(context.Background(), room.Code); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Skip: expected ErrNotLinked, got %v", err)
	}
	if p.IsAuthenticated(context.Background(), "host-sid") {
		t.Error("IsAuthenticated reported a missing credential as linked")
	}
}

func TestProviderFailureSurfaced(t *testing.T) {
	up := &fakeUpstream{status: http.StatusInternalServerError}
	p, _, code := newTestProxy(t, up, time.Minute)

	_, err := p.CurrentTrack(context.Background(), code)
	if !IsProviderError(err) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", pe.Status)
	}
}

func TestAccessTokenRefreshedOnExpiry(t *testing.T) {
	var refreshed atomic.Int32
	mux := http.NewServeMux()
	up := &fakeUpstream{body: playbackJSON}
	mux.Handle("/me/player", up.handler())
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		refreshed.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	rooms := registry.NewRoomStore(nil)
	room, _ := rooms.Create("host-sid", 2, false)
	creds := newMemCreds()
	_ = creds.Upsert(context.Background(), "host-sid", "access-1", "refresh-1", "Bearer",
		time.Now().UTC().Add(-time.Minute)) // already expired

	p := NewProxy(NewClient(ClientConfig{APIURL: srv.URL, AccountsURL: srv.URL}), creds, rooms, time.Minute)
	if _, err := p.CurrentTrack(context.Background(), room.Code); err != nil {
		t.Fatalf("CurrentTrack failed: %v", err)
	}
	if refreshed.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshed.Load())
	}

	tok, err := creds.Get(context.Background(), "host-sid")
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "access-2" {
		t.Errorf("stored access token = %q, want refreshed one", tok.AccessToken)
	}
	if tok.RefreshToken != "refresh-1" {
		t.Errorf("refresh token lost: %q", tok.RefreshToken)
	}
}

func TestRevokedRefreshTokenMeansNotLinked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	rooms := registry.NewRoomStore(nil)
	room, _ := rooms.Create("host-sid", 2, false)
	creds := newMemCreds()
	_ = creds.Upsert(context.Background(), "host-sid", "access-1", "refresh-1", "Bearer",
		time.Now().UTC().Add(-time.Minute))

	p := NewProxy(NewClient(ClientConfig{APIURL: srv.URL, AccountsURL: srv.URL}), creds, rooms, time.Minute)
	if _, err := p.CurrentTrack(context.Background(), room.Code); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
}

func TestForgetDropsCache(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON}
	p, _, code := newTestProxy(t, up, time.Minute)
	ctx := context.Background()

	if _, err := p.CurrentTrack(ctx, code); err != nil {
		t.Fatal(err)
	}
	p.Forget(code)
	if _, err := p.CurrentTrack(ctx, code); err != nil {
		t.Fatal(err)
	}
	if got := up.playerHits.Load(); got != 2 {
		t.Errorf("upstream fetches = %d, want 2 after Forget", got)
	}
}

func TestSkipUsesHostCredential(t *testing.T) {
	up := &fakeUpstream{body: playbackJSON}
	p, _, code := newTestProxy(t, up, time.Minute)

	if err := p.Skip(context.Background(), code); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if up.nextHits.Load() != 1 {
		t.Errorf("next calls = %d, want 1", up.nextHits.Load())
	}
}

func TestAuthURL(t *testing.T) {
	c := NewClient(ClientConfig{
		ClientID:    "client-123",
		RedirectURI: "http://localhost:8000/spotify/redirect",
	})
	raw := c.AuthURL("sid-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL unparseable: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/authorize") {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("client_id") != "client-123" || q.Get("response_type") != "code" {
		t.Errorf("query = %v", q)
	}
	if q.Get("state") != "sid-1" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if !strings.Contains(q.Get("scope"), "user-modify-playback-state") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}
