package oauth2

import (
	"fmt"
	"net/http"
)

// Error is an OAuth2 protocol error carrying the wire error code, a human
// description and the HTTP status it maps to. Storage failures are wrapped so
// no internal detail reaches the client.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
	wrapped     error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.wrapped }

func InvalidRequest(description string) *Error {
	return &Error{Code: "invalid_request", Description: description, Status: http.StatusBadRequest}
}

func InvalidClient(description string) *Error {
	return &Error{Code: "invalid_client", Description: description, Status: http.StatusUnauthorized}
}

func InvalidGrant(description string) *Error {
	return &Error{Code: "invalid_grant", Description: description, Status: http.StatusBadRequest}
}

func UnauthorizedClient(description string) *Error {
	return &Error{Code: "unauthorized_client", Description: description, Status: http.StatusBadRequest}
}

func UnsupportedGrantType(grantType string) *Error {
	return &Error{Code: "unsupported_grant_type", Description: fmt.Sprintf("grant type %q is not supported", grantType), Status: http.StatusBadRequest}
}

func UnsupportedResponseType(responseType string) *Error {
	return &Error{Code: "unsupported_response_type", Description: fmt.Sprintf("response type %q is not supported", responseType), Status: http.StatusBadRequest}
}

func AccessDenied() *Error {
	return &Error{Code: "access_denied", Description: "the resource owner denied the request", Status: http.StatusBadRequest}
}

func InvalidScope(description string) *Error {
	return &Error{Code: "invalid_scope", Description: description, Status: http.StatusBadRequest}
}

func InsufficientScope() *Error {
	return &Error{Code: "insufficient_scope", Description: "the token does not carry the required scope", Status: http.StatusForbidden}
}

func InvalidToken(description string) *Error {
	return &Error{Code: "invalid_token", Description: description, Status: http.StatusUnauthorized}
}

// StorageError wraps a persistence failure. Always fatal to the current
// request; never retried, and the underlying error is not surfaced.
func StorageError(err error) *Error {
	return &Error{Code: "server_error", Description: "temporary storage failure", Status: http.StatusInternalServerError, wrapped: err}
}

func ServerError(err error) *Error {
	return &Error{Code: "server_error", Description: "internal error", Status: http.StatusInternalServerError, wrapped: err}
}
