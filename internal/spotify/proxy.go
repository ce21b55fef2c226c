package spotify

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/party-rooms/internal/model"
	"github.com/iliyamo/party-rooms/internal/registry"
)

// CredentialStore persists provider tokens keyed by the session that linked
// them. Get returns sql.ErrNoRows when no credential exists.
type CredentialStore interface {
	Get(ctx context.Context, sessionID string) (model.ProviderToken, error)
	Upsert(ctx context.Context, sessionID, accessToken, refreshToken, tokenType string, expiresAt time.Time) error
}

// DefaultCacheTTL is how long a polled playback state stays fresh. One
// second matches the poll cadence of the clients.
const DefaultCacheTTL = time.Second

// Proxy executes playback operations for a room using the room host's
// credential, regardless of which session asked. Per-caller authorization
// (guest_can_pause) is the handler layer's job; the proxy only refuses when
// no host credential is linked.
type Proxy struct {
	client *Client
	creds  CredentialStore
	rooms  *registry.RoomStore
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// cacheEntry holds the last observed playback state for one room. The entry
// lock is held across a refresh, so concurrent pollers that miss coalesce
// into a single upstream call and then all read the fresh result.
type cacheEntry struct {
	mu      sync.Mutex
	state   *model.PlaybackState // nil when nothing is playing
	fetched time.Time
}

// NewProxy wires the client, credential store and room registry together.
// ttl <= 0 selects DefaultCacheTTL.
func NewProxy(client *Client, creds CredentialStore, rooms *registry.RoomStore, ttl time.Duration) *Proxy {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Proxy{
		client: client,
		creds:  creds,
		rooms:  rooms,
		ttl:    ttl,
		cache:  make(map[string]*cacheEntry),
	}
}

// AuthURL exposes the consent URL for the underlying client.
func (p *Proxy) AuthURL(state string) string { return p.client.AuthURL(state) }

// ExchangeAndStore completes the consent flow: trades the callback code for
// a token pair and persists it under the linking session.
func (p *Proxy) ExchangeAndStore(ctx context.Context, sessionID, authCode string) error {
	tok, err := p.client.ExchangeCode(ctx, authCode)
	if err != nil {
		return err
	}
	return p.creds.Upsert(ctx, sessionID, tok.AccessToken, tok.RefreshToken, tok.TokenType, tok.ExpiresAt)
}

// IsAuthenticated reports whether the session has a usable credential. An
// expired access token is refreshed on the spot, matching the behavior the
// frontend expects from the is-authenticated poll.
func (p *Proxy) IsAuthenticated(ctx context.Context, sessionID string) bool {
	_, err := p.accessTokenFor(ctx, sessionID)
	return err == nil
}

// CurrentTrack returns the room's current playback state, served from the
// cache when it is younger than the ttl. (nil, nil) means nothing is
// playing. The "nothing playing" answer is cached too, so an idle room full
// of pollers does not hammer the provider.
func (p *Proxy) CurrentTrack(ctx context.Context, code string) (*model.PlaybackState, error) {
	room, err := p.rooms.Get(code)
	if err != nil {
		return nil, err
	}

	e := p.entry(code)
	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Since(e.fetched) < p.ttl {
		return copyState(e.state), nil
	}

	access, err := p.accessTokenFor(ctx, room.HostSessionID)
	if err != nil {
		return nil, err
	}
	pb, err := p.client.CurrentPlayback(ctx, access)
	if err != nil {
		return nil, err
	}
	e.state = toPlaybackState(pb)
	e.fetched = time.Now()
	return copyState(e.state), nil
}

// Play resumes the room's playback with the host credential.
func (p *Proxy) Play(ctx context.Context, code string) error {
	access, err := p.roomAccessToken(ctx, code)
	if err != nil {
		return err
	}
	return p.client.Play(ctx, access, "")
}

// Pause pauses the room's playback with the host credential.
func (p *Proxy) Pause(ctx context.Context, code string) error {
	access, err := p.roomAccessToken(ctx, code)
	if err != nil {
		return err
	}
	return p.client.Pause(ctx, access)
}

// Skip advances the room to the next track with the host credential.
func (p *Proxy) Skip(ctx context.Context, code string) error {
	access, err := p.roomAccessToken(ctx, code)
	if err != nil {
		return err
	}
	return p.client.Next(ctx, access)
}

// Forget drops the cached playback state for a room. Called on teardown.
func (p *Proxy) Forget(code string) {
	p.mu.Lock()
	delete(p.cache, code)
	p.mu.Unlock()
}

func (p *Proxy) entry(code string) *cacheEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[code]
	if !ok {
		e = &cacheEntry{}
		p.cache[code] = e
	}
	return e
}

func (p *Proxy) roomAccessToken(ctx context.Context, code string) (string, error) {
	room, err := p.rooms.Get(code)
	if err != nil {
		return "", err
	}
	return p.accessTokenFor(ctx, room.HostSessionID)
}

// accessTokenFor loads the session's credential, refreshing it when the
// access token has expired. A missing row or a rejected refresh token both
// surface as ErrNotLinked; anything else is an upstream failure.
func (p *Proxy) accessTokenFor(ctx context.Context, sessionID string) (string, error) {
	tok, err := p.creds.Get(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotLinked
	}
	if err != nil {
		return "", err
	}
	if !tok.Expired(time.Now().UTC()) {
		return tok.AccessToken, nil
	}

	fresh, err := p.client.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && (pe.Status == http.StatusBadRequest || pe.Status == http.StatusUnauthorized) {
			// The refresh token itself was revoked; the host has to
			// re-consent.
			return "", ErrNotLinked
		}
		return "", err
	}
	if err := p.creds.Upsert(ctx, sessionID, fresh.AccessToken, fresh.RefreshToken, fresh.TokenType, fresh.ExpiresAt); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

func toPlaybackState(pb *playbackResponse) *model.PlaybackState {
	if pb == nil {
		return nil
	}
	names := make([]string, 0, len(pb.Item.Artists))
	for _, a := range pb.Item.Artists {
		names = append(names, a.Name)
	}
	image := ""
	if len(pb.Item.Album.Images) > 0 {
		image = pb.Item.Album.Images[0].URL
	}
	return &model.PlaybackState{
		TrackID:    pb.Item.ID,
		Title:      pb.Item.Name,
		Artist:     strings.Join(names, ", "),
		ImageURL:   image,
		DurationMs: pb.Item.DurationMs,
		ProgressMs: pb.ProgressMs,
		IsPlaying:  pb.IsPlaying,
	}
}

func copyState(s *model.PlaybackState) *model.PlaybackState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
