package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/party-rooms/internal/utils"
)

// SessionCookieName is the cookie carrying the signed session id.
const SessionCookieName = "session_token"

// sessionKey is the context key handlers read the session id from.
const sessionKey = "session_id"

// Session returns an Echo middleware that establishes the caller's opaque
// identity. A valid session cookie is verified and its id injected into the
// request context; a missing or invalid cookie gets a fresh id minted on
// the spot, matching the "issued on first contact" contract. Every request
// therefore reaches its handler with a session id, and handlers never deal
// with anonymous callers.
func Session(secret string, ttlDays int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				if sid, err := utils.ParseSessionID(secret, cookie.Value); err == nil {
					c.Set(sessionKey, sid)
					return next(c)
				}
			}

			sid := uuid.NewString()
			signed, exp, err := utils.NewSessionToken(secret, sid, ttlDays)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session issue failed"})
			}
			c.SetCookie(&http.Cookie{
				Name:     SessionCookieName,
				Value:    signed,
				Path:     "/",
				Expires:  exp,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(sessionKey, sid)
			return next(c)
		}
	}
}

// SessionID returns the session id established by the Session middleware.
// It is empty only when the middleware did not run.
func SessionID(c echo.Context) string {
	if v, ok := c.Get(sessionKey).(string); ok {
		return v
	}
	return ""
}
