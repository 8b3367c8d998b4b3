package handlers

import (
	"net/http"
	"time"

	"authserv/internal/services"

	"github.com/labstack/echo/v4"
)

const sessionCookieName = "session"

// SessionHandlers handles the login/logout surface that feeds the consent
// orchestrator its authenticated user.
type SessionHandlers struct {
	sessions   services.SessionService
	sessionTTL time.Duration
}

func NewSessionHandlers(sessions services.SessionService, sessionTTL time.Duration) *SessionHandlers {
	return &SessionHandlers{sessions: sessions, sessionTTL: sessionTTL}
}

// sessionToken resolves the caller's session token from the cookie or the
// X-Session-Token header.
func sessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return c.Request().Header.Get("X-Session-Token")
}

// LoginRequest is the login payload. Users are created on first login by
// username.
type LoginRequest struct {
	Username string  `json:"username" form:"username"`
	Email    *string `json:"email" form:"email"`
}

// Login upserts the user and issues a session token, set both as a cookie and
// returned in the body for non-browser callers.
func (h *SessionHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username is required")
	}

	user, token, err := h.sessions.Login(c.Request().Context(), req.Username, req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to log in")
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.sessionTTL),
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":          user,
		"session_token": token,
	})
}

// Logout deletes the session.
func (h *SessionHandlers) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context(), sessionToken(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to log out")
	}
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}
