package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com/v1"

	// Scopes required to read and control the host's playback.
	authScopes = "user-read-playback-state user-modify-playback-state"
)

// ClientConfig configures a Client. AccountsURL and APIURL default to the
// real Spotify endpoints and exist as knobs so tests can point the client at
// a fake upstream.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AccountsURL  string
	APIURL       string
}

// Client speaks the Spotify accounts and Web API wire formats. It holds no
// per-room state; callers supply the access token for every call.
type Client struct {
	httpc        *http.Client
	clientID     string
	clientSecret string
	redirectURI  string
	accountsURL  string
	apiURL       string
}

// NewClient builds a client with a bounded-timeout HTTP client so no
// provider call can hang a request.
func NewClient(cfg ClientConfig) *Client {
	accounts := cfg.AccountsURL
	if accounts == "" {
		accounts = defaultAccountsURL
	}
	api := cfg.APIURL
	if api == "" {
		api = defaultAPIURL
	}
	return &Client{
		httpc:        &http.Client{Timeout: 10 * time.Second},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		accountsURL:  accounts,
		apiURL:       api,
	}
}

// Token is the credential material returned by the accounts service. The
// refresh grant does not always echo a refresh token back; callers keep the
// old one in that case.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthURL returns the consent-flow URL the host's browser is sent to. The
// state value is round-tripped by Spotify and checked in the callback.
func (c *Client) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", authScopes)
	if state != "" {
		q.Set("state", state)
	}
	return c.accountsURL + "/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code from the consent callback for a
// token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	return c.tokenRequest(ctx, form)
}

// Refresh mints a new access token from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return Token{}, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (Token, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &ProviderError{Op: "token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Token{}, &ProviderError{Op: "token", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Token{}, &ProviderError{Op: "token", Status: resp.StatusCode}
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, &ProviderError{Op: "token", Err: err}
	}
	if body.AccessToken == "" {
		return Token{}, &ProviderError{Op: "token", Err: fmt.Errorf("empty access token in response")}
	}
	return Token{
		AccessToken:  body.AccessToken,
		TokenType:    body.TokenType,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}

// playbackResponse mirrors the subset of GET /v1/me/player that the service
// uses.
type playbackResponse struct {
	ProgressMs int  `json:"progress_ms"`
	IsPlaying  bool `json:"is_playing"`
	Item       struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		DurationMs int    `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// CurrentPlayback fetches the current playback state. A 204 or an empty
// item means nothing is playing, which is reported as (nil, nil) rather
// than an error.
func (c *Client) CurrentPlayback(ctx context.Context, accessToken string) (*playbackResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/me/player", nil)
	if err != nil {
		return nil, &ProviderError{Op: "player", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: "player", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, &ProviderError{Op: "player", Status: resp.StatusCode}
	}

	var pb playbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&pb); err != nil {
		return nil, &ProviderError{Op: "player", Err: err}
	}
	if pb.Item.ID == "" {
		return nil, nil
	}
	return &pb, nil
}

// Play resumes playback, optionally starting a specific track URI.
func (c *Client) Play(ctx context.Context, accessToken, trackURI string) error {
	body := ""
	if trackURI != "" {
		b, err := json.Marshal(map[string][]string{"uris": {trackURI}})
		if err != nil {
			return &ProviderError{Op: "play", Err: err}
		}
		body = string(b)
	}
	return c.playerCommand(ctx, accessToken, http.MethodPut, "/me/player/play", body, "play")
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, accessToken string) error {
	return c.playerCommand(ctx, accessToken, http.MethodPut, "/me/player/pause", "", "pause")
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context, accessToken string) error {
	return c.playerCommand(ctx, accessToken, http.MethodPost, "/me/player/next", "", "next")
}

func (c *Client) playerCommand(ctx context.Context, accessToken, method, path, body, op string) error {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, rd)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	// Spotify answers commands with 204; repeating a pause on an already
	// paused player still returns success, which keeps these idempotent.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &ProviderError{Op: op, Status: resp.StatusCode}
}
