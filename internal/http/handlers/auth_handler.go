// Auth HTTP handlers.
//
//   - POST /auth/register
//   - POST /auth/login
//   - POST /auth/logout
//   - GET  /auth/session
//
// Login returns the session token in the body and, for browser clients, as
// an HttpOnly cookie read back by the session middleware.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/http/middleware"
	"github.com/bitafam/terrenos/internal/session"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Name     string `json:"name"     example:"Ana Quispe"`
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"secreto123"`
}

// LoginRequest is the JSON payload for signing in.
type LoginRequest struct {
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"secreto123"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Registers a new account and its user record. The account can sign in right away.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Account details"
// @Success     201  {object} session.Identity
// @Failure     400  {object} handlers.ErrorResponse "Missing fields, invalid e-mail or weak password"
// @Failure     409  {object} handlers.ErrorResponse "E-mail already registered"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody)
		return
	}
	id, err := h.auth.SignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, id)
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Verifies credentials and starts a session. The token is returned in the body and set as the "session" cookie.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object} session.Session
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody)
		return
	}
	s, err := h.auth.SignIn(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	h.setSessionCookie(c, s.Token, time.Until(s.ExpiresAt))
	ok(c, http.StatusOK, s)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Revokes the current session token and clears the session cookie.
// @Tags        Auth
// @Security    BearerAuth
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgLoginRequired)
		return
	}
	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		failErr(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	noContent(c)
}

// CurrentSession godoc
// @ID          currentSession
// @Summary     Current session
// @Description Returns the session attached to the request.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} session.Session
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Router      /auth/session [get]
func (h *Handlers) CurrentSession(c *gin.Context) {
	if s, found := middleware.SessionFrom(c); found {
		ok(c, http.StatusOK, s)
		return
	}
	s, err := h.auth.Current(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// setSessionCookie writes (ttl > 0) or clears (ttl < 0) the session cookie.
func (h *Handlers) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.opts.SecureCookie, true)
}

var _ AuthService = (*session.Manager)(nil)
