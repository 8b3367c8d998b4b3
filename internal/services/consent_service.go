package services

import (
	"context"
	"errors"

	"authserv/internal/models"
	"authserv/internal/oauth2"
)

// ConsentPrompt is the context an external consent UI renders: the resolved
// client, the narrowed scope and the request to echo back on confirmation.
type ConsentPrompt struct {
	ClientName string                       `json:"client_name"`
	ClientURI  *string                      `json:"client_uri"`
	Scope      string                       `json:"scope"`
	User       string                       `json:"user"`
	Request    *oauth2.AuthorizationRequest `json:"request"`
}

// ConsentOutcome is either a redirect (auto-granted or resolved) or a pending
// consent prompt.
type ConsentOutcome struct {
	Redirect *oauth2.AuthorizationResponse
	Prompt   *ConsentPrompt
}

// ConsentService ties a user session to a pending grant request. Internal
// clients skip the prompt entirely; everyone else waits for an explicit
// confirmation.
type ConsentService interface {
	Prepare(ctx context.Context, sessionToken string, req *oauth2.AuthorizationRequest) (*ConsentOutcome, error)
	Resolve(ctx context.Context, sessionToken string, req *oauth2.AuthorizationRequest, confirmed bool) (*oauth2.AuthorizationResponse, error)
}

type consentService struct {
	engine   *oauth2.Engine
	sessions SessionService
}

func NewConsentService(engine *oauth2.Engine, sessions SessionService) ConsentService {
	return &consentService{engine: engine, sessions: sessions}
}

// Prepare validates the authorization request and either short-circuits for a
// pre-trusted internal client or returns the consent prompt to render.
func (s *consentService) Prepare(ctx context.Context, sessionToken string, req *oauth2.AuthorizationRequest) (*ConsentOutcome, error) {
	user, err := s.sessions.CurrentUser(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, oauth2.AccessDenied()
		}
		return nil, oauth2.StorageError(err)
	}

	client, granted, err := s.engine.ValidateAuthorization(ctx, req)
	if err != nil {
		return nil, err
	}

	// Trust shortcut for first-party clients: no consent form, immediate
	// grant with the session user.
	if client.IsInternal {
		redirect, err := s.engine.Authorize(ctx, req, user)
		if err != nil {
			return nil, err
		}
		return &ConsentOutcome{Redirect: redirect}, nil
	}

	return &ConsentOutcome{Prompt: &ConsentPrompt{
		ClientName: client.ClientName,
		ClientURI:  client.ClientURI,
		Scope:      granted,
		User:       user.Username,
		Request:    req,
	}}, nil
}

// Resolve finalizes the flow: a falsy confirm leaves the grant user nil and
// the engine answers with access_denied per OAuth2 error semantics.
func (s *consentService) Resolve(ctx context.Context, sessionToken string, req *oauth2.AuthorizationRequest, confirmed bool) (*oauth2.AuthorizationResponse, error) {
	var grantUser *models.User
	if confirmed {
		user, err := s.sessions.CurrentUser(ctx, sessionToken)
		if err != nil && !errors.Is(err, ErrNoSession) {
			return nil, oauth2.StorageError(err)
		}
		grantUser = user
	}

	resp, err := s.engine.Authorize(ctx, req, grantUser)
	if err != nil {
		// The engine validates the redirect URI before deciding on the
		// grant user, so a denial is safe to deliver on the redirect.
		var oauthErr *oauth2.Error
		if errors.As(err, &oauthErr) && oauthErr.Code == "access_denied" {
			return s.engine.ErrorRedirect(req, oauthErr), nil
		}
		return nil, err
	}
	return resp, nil
}
