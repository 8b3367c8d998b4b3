package middleware

import (
	"errors"
	"net/http"
	"strings"

	"authserv/internal/common"
	"authserv/internal/oauth2"
	"authserv/internal/services"

	"github.com/labstack/echo/v4"
)

// RequireOAuth validates the bearer token on the incoming request and exposes
// the authenticated identity to the handler via the request context. The
// context value lives for this single request only.
func RequireOAuth(tokenSvc services.TokenService, requiredScopes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := extractBearer(c.Request().Header.Get("Authorization"))
			if err != nil {
				c.Response().Header().Set("WWW-Authenticate", `Bearer realm="authserv"`)
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
			}

			auth, err := tokenSvc.ValidateBearerToken(c.Request().Context(), raw, requiredScopes)
			if err != nil {
				var oauthErr *oauth2.Error
				if errors.As(err, &oauthErr) {
					c.Response().Header().Set("WWW-Authenticate",
						`Bearer realm="authserv", error="`+oauthErr.Code+`"`)
					return c.JSON(oauthErr.Status, oauthErr)
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Token validation failed")
			}

			ctx := common.WithAuthContext(c.Request().Context(), auth)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func extractBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", errors.New("malformed authorization header")
	}
	return token, nil
}
