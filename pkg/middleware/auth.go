package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/claims"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/pkg/logger"
	"github.com/kentsikayet/portal/pkg/metrics"
)

// Context keys set by the guard.
const (
	SessionIDKey = "sid"
	SessionKey   = "session"
	ClaimsKey    = "claims"
	resolvedKey  = "session_resolved"
)

// Redirect targets.
const (
	LoginPath    = "/login"
	NotFoundPath = "/not-found"
)

var log = logger.For("guard")

// SessionReader is the part of the session store the guard reads through.
type SessionReader interface {
	Current(ctx context.Context, sid string) (*sessions.Session, error)
}

// Guard decides, on every request, whether the browser's session may reach a
// route. It reads the session store afresh each time, so a logout takes
// effect on the very next request.
type Guard struct {
	store  SessionReader
	cookie string
	now    func() time.Time
}

func NewGuard(store SessionReader, cookie string) *Guard {
	return &Guard{store: store, cookie: cookie, now: time.Now}
}

// CookieName returns the name of the session id cookie.
func (g *Guard) CookieName() string { return g.cookie }

// Session loads the current session into the context when there is one. It
// never aborts; use it on public pages that render differently when logged in.
func (g *Guard) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		g.resolve(c)
		c.Next()
	}
}

// RequireSession lets any logged-in user through and sends everyone else to
// the login page.
func (g *Guard) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := g.resolve(c); !ok {
			metrics.GuardDecisions.WithLabelValues("", "no_session").Inc()
			deny(c, http.StatusUnauthorized, LoginPath)
			return
		}
		c.Next()
	}
}

// RequireRole lets the request through only when the session's token grants
// role. Missing sessions and missing roles both lead to the not-found page.
func (g *Guard) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := g.resolve(c)
		switch {
		case !ok:
			metrics.GuardDecisions.WithLabelValues(role, "no_session").Inc()
			deny(c, http.StatusNotFound, NotFoundPath)
			return
		case !cl.HasRole(role):
			metrics.GuardDecisions.WithLabelValues(role, "forbidden").Inc()
			log.Debugf("subject=%s lacks role %s for %s", cl.Subject, role, c.Request.URL.Path)
			deny(c, http.StatusNotFound, NotFoundPath)
			return
		}
		metrics.GuardDecisions.WithLabelValues(role, "allow").Inc()
		c.Next()
	}
}

// resolve reads the session once per request and caches the outcome.
func (g *Guard) resolve(c *gin.Context) (claims.Claims, bool) {
	if _, done := c.Get(resolvedKey); done {
		return ClaimsFrom(c)
	}
	c.Set(resolvedKey, true)

	sid, err := c.Cookie(g.cookie)
	if err != nil || sid == "" {
		return claims.Claims{}, false
	}
	c.Set(SessionIDKey, sid)
	sess, err := g.store.Current(c.Request.Context(), sid)
	if err != nil {
		log.Errorf("load session: %v", err)
		return claims.Claims{}, false
	}
	if sess == nil {
		return claims.Claims{}, false
	}
	cl := sess.Claims()
	if cl.Empty() || cl.Expired(g.now()) {
		return claims.Claims{}, false
	}
	c.Set(SessionKey, sess)
	c.Set(ClaimsKey, cl)
	return cl, true
}

// deny redirects browsers and answers API clients with a JSON body naming
// the redirect target.
func deny(c *gin.Context, jsonStatus int, target string) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(jsonStatus, gin.H{"redirect": target})
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// WantsJSON reports whether the request came from page script rather than a
// top-level navigation.
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// SessionFrom returns the session the guard attached to c.
func SessionFrom(c *gin.Context) (*sessions.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*sessions.Session)
	return s, ok && s != nil
}

// ClaimsFrom returns the decoded claims the guard attached to c.
func ClaimsFrom(c *gin.Context) (claims.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return claims.Claims{}, false
	}
	cl, ok := v.(claims.Claims)
	return cl, ok
}

// SessionID returns the session cookie value seen by the guard, or "".
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
