package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/session"
)

// SessionCookie is the cookie a browser client may carry the token in.
const SessionCookie = "session"

const (
	ctxKeyUserID     = "userID"
	ctxKeySession    = "session"
	ctxKeyGuardState = "guard.state"
)

// SessionResolver turns a bearer token into a live session.
type SessionResolver interface {
	Current(ctx context.Context, token string) (*session.Session, error)
}

// BearerToken extracts the token from "Authorization: Bearer <t>", falling
// back to the session cookie.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck
	}
	return ""
}

// UserID returns the signed-in user, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	return asString(v)
}

// SessionFrom returns the session resolved for this request.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, _ := c.Get(ctxKeySession)
	s, ok := v.(*session.Session)
	return s, ok && s != nil
}

func setSession(c *gin.Context, s *session.Session) {
	c.Set(ctxKeySession, s)
	c.Set(ctxKeyUserID, s.UserID)
}

// resolve looks up the request's session once; later calls reuse it.
func resolve(c *gin.Context, res SessionResolver) (*session.Session, bool) {
	if s, ok := SessionFrom(c); ok {
		return s, true
	}
	tok := BearerToken(c)
	if tok == "" || res == nil {
		return nil, false
	}
	s, err := res.Current(c.Request.Context(), tok)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			LoggerFrom(c).Warn().Err(err).Msg("session lookup failed")
		}
		return nil, false
	}
	setSession(c, s)
	return s, true
}

// Authenticate attaches the caller's session when a valid token is present.
// Anonymous requests pass through unchanged.
func Authenticate(res SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolve(c, res)
		c.Next()
	}
}

// GuardState is the access guard's verdict for one request.
type GuardState int

const (
	GuardChecking GuardState = iota
	GuardAuthenticated
	GuardRedirecting
)

func (s GuardState) String() string {
	switch s {
	case GuardChecking:
		return "checking"
	case GuardAuthenticated:
		return "authenticated"
	case GuardRedirecting:
		return "redirecting"
	}
	return "unknown"
}

// GuardStateFrom returns the verdict RequireSession reached for c.
func GuardStateFrom(c *gin.Context) GuardState {
	v, _ := c.Get(ctxKeyGuardState)
	s, _ := v.(GuardState)
	return s
}

// GuardOptions configures RequireSession.
type GuardOptions struct {
	// LoginPath is where unauthenticated callers are sent. Defaults to /login.
	LoginPath string
}

// RequireSession lets a request through only with a live session. Otherwise
// the handler chain is aborted before anything is loaded: browsers get a 302
// to the login page, API clients a 401 whose Location names it.
func RequireSession(res SessionResolver, opts GuardOptions) gin.HandlerFunc {
	login := opts.LoginPath
	if login == "" {
		login = "/login"
	}
	return func(c *gin.Context) {
		state := GuardChecking
		c.Set(ctxKeyGuardState, state)

		if _, ok := resolve(c, res); ok {
			state = GuardAuthenticated
		} else {
			state = GuardRedirecting
		}
		c.Set(ctxKeyGuardState, state)

		if state == GuardAuthenticated {
			c.Next()
			return
		}

		loc := login + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Header("Location", loc)
		if wantsHTML(c.Request) {
			c.Redirect(http.StatusFound, loc)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "unauthenticated",
			"message":    "Debes iniciar sesión para continuar.",
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
