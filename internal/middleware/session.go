package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionHeader lets API clients that do not keep cookies carry their session explicitly.
	SessionHeader = "X-Session-ID"
	// ContextSessionKey is the gin context key storing the browser session id.
	ContextSessionKey = "sessionID"

	defaultSessionCookie = "sid"
	maxSessionIDLength   = 64
)

// Session identifies the browser session used to count file accesses and previews once.
// The id comes from the X-Session-ID header or the session cookie; a new one is issued when
// neither is present.
func Session(cookieName string, ttl time.Duration) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = defaultSessionCookie
	}
	maxAge := int(ttl.Seconds())
	return func(c *gin.Context) {
		sessionID := sanitizeSessionID(c.GetHeader(SessionHeader))
		if sessionID == "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				sessionID = sanitizeSessionID(cookie)
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, sessionID, maxAge, "/", "", false, true)
		}

		c.Set(ContextSessionKey, sessionID)
		c.Header(SessionHeader, sessionID)
		c.Next()
	}
}

// SessionID returns the id attached by Session, or an empty string.
func SessionID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ContextSessionKey)
}

func sanitizeSessionID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxSessionIDLength {
		return ""
	}
	for _, r := range raw {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return ""
		}
	}
	return raw
}
