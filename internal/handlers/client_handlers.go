package handlers

import (
	"net/http"
	"strings"

	"authserv/internal/services"

	"github.com/labstack/echo/v4"
)

// ClientHandlers handles OAuth2 client registration for the owning user.
type ClientHandlers struct {
	clients  services.ClientService
	sessions services.SessionService
}

func NewClientHandlers(clients services.ClientService, sessions services.SessionService) *ClientHandlers {
	return &ClientHandlers{clients: clients, sessions: sessions}
}

// RegisterClientRequest mirrors the registration form: list-valued fields
// arrive newline-delimited, scope space-delimited.
type RegisterClientRequest struct {
	ClientName              string `json:"client_name" form:"client_name"`
	ClientURI               string `json:"client_uri" form:"client_uri"`
	GrantTypes              string `json:"grant_types" form:"grant_types"`
	RedirectURIs            string `json:"redirect_uris" form:"redirect_uris"`
	ResponseTypes           string `json:"response_types" form:"response_types"`
	Scope                   string `json:"scope" form:"scope"`
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method" form:"token_endpoint_auth_method"`
	CodeChallengeMethod     string `json:"code_challenge_method" form:"code_challenge_method"`
	IsInternal              bool   `json:"is_internal" form:"is_internal"`
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Register creates a client owned by the session user. The generated
// client_secret is returned once, in this response only.
func (h *ClientHandlers) Register(c echo.Context) error {
	user, err := h.sessions.CurrentUser(c.Request().Context(), sessionToken(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Login required")
	}

	var req RegisterClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	metadata := services.ClientMetadata{
		ClientName:              req.ClientName,
		GrantTypes:              splitLines(req.GrantTypes),
		RedirectURIs:            splitLines(req.RedirectURIs),
		ResponseTypes:           splitLines(req.ResponseTypes),
		Scope:                   req.Scope,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		IsInternal:              req.IsInternal,
	}
	if req.ClientURI != "" {
		metadata.ClientURI = &req.ClientURI
	}
	if req.CodeChallengeMethod != "" {
		metadata.CodeChallengeMethod = &req.CodeChallengeMethod
	}

	client, err := h.clients.Register(c.Request().Context(), user.ID, metadata)
	if err != nil {
		return writeOAuthError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"client":        client,
		"client_id":     client.ClientID,
		"client_secret": client.ClientSecret,
	})
}

// List returns the session user's registered clients.
func (h *ClientHandlers) List(c echo.Context) error {
	user, err := h.sessions.CurrentUser(c.Request().Context(), sessionToken(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Login required")
	}

	clients, err := h.clients.ListByUser(c.Request().Context(), user.ID)
	if err != nil {
		return writeOAuthError(c, err)
	}
	return c.JSON(http.StatusOK, clients)
}
