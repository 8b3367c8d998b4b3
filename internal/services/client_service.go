package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"authserv/internal/models"
	"authserv/internal/oauth2"
	"authserv/internal/repositories"

	"github.com/google/uuid"
)

// ClientMetadata is the registration payload for a new OAuth2 client.
// grant_types, redirect_uris and response_types arrive newline-delimited from
// the registration form and are split by the handler.
type ClientMetadata struct {
	ClientName              string
	ClientURI               *string
	GrantTypes              []string
	ResponseTypes           []string
	RedirectURIs            []string
	Scope                   string
	TokenEndpointAuthMethod string
	CodeChallengeMethod     *string
	IsInternal              bool
}

// ClientService is the client registry: it creates registered applications
// and enforces their redirect and scope constraints.
type ClientService interface {
	Register(ctx context.Context, ownerID uuid.UUID, metadata ClientMetadata) (*models.Client, error)
	Get(ctx context.Context, clientID string) (*models.Client, error)
	ListByUser(ctx context.Context, ownerID uuid.UUID) ([]*models.Client, error)
	Authenticate(ctx context.Context, clientID, clientSecret string) (*models.Client, error)
	ResolveAllowedScope(client *models.Client, requestedScope string) string
	ValidateRedirectURI(client *models.Client, uri string) error
}

type clientService struct {
	clients repositories.ClientRepository
}

func NewClientService(clients repositories.ClientRepository) ClientService {
	return &clientService{clients: clients}
}

// Register generates a fresh unique client_id and, unless the client is
// public (auth method "none"), a client secret.
func (s *clientService) Register(ctx context.Context, ownerID uuid.UUID, metadata ClientMetadata) (*models.Client, error) {
	if metadata.ClientName == "" {
		return nil, oauth2.InvalidRequest("client_name is required")
	}
	if len(metadata.RedirectURIs) == 0 {
		return nil, oauth2.InvalidRequest("at least one redirect_uri is required")
	}

	authMethod := metadata.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = models.AuthMethodClientSecretBasic
	}

	secret := ""
	if authMethod != models.AuthMethodNone {
		secret = randomCredential(48)
	}

	client := &models.Client{
		ID:                      uuid.New(),
		ClientID:                randomCredential(32),
		ClientSecret:            secret,
		UserID:                  ownerID,
		ClientName:              metadata.ClientName,
		ClientURI:               metadata.ClientURI,
		GrantTypes:              metadata.GrantTypes,
		ResponseTypes:           metadata.ResponseTypes,
		RedirectURIs:            metadata.RedirectURIs,
		Scope:                   metadata.Scope,
		TokenEndpointAuthMethod: authMethod,
		CodeChallengeMethod:     metadata.CodeChallengeMethod,
		IsInternal:              metadata.IsInternal,
	}

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, oauth2.StorageError(err)
	}
	return client, nil
}

func (s *clientService) Get(ctx context.Context, clientID string) (*models.Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oauth2.InvalidClient("unknown client")
		}
		return nil, oauth2.StorageError(err)
	}
	return client, nil
}

func (s *clientService) ListByUser(ctx context.Context, ownerID uuid.UUID) ([]*models.Client, error) {
	clients, err := s.clients.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, oauth2.StorageError(err)
	}
	return clients, nil
}

func (s *clientService) Authenticate(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	client, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, oauth2.InvalidClient("client authentication failed")
	}
	return client, nil
}

// ResolveAllowedScope intersects the requested scope against the client's
// registration, order-preserving; unknown tokens drop silently.
func (s *clientService) ResolveAllowedScope(client *models.Client, requestedScope string) string {
	return oauth2.IntersectScope(client.Scope, requestedScope)
}

func (s *clientService) ValidateRedirectURI(client *models.Client, uri string) error {
	if strings.TrimSpace(uri) == "" || !client.CheckRedirectURI(uri) {
		return oauth2.InvalidRequest("redirect_uri is not registered for this client")
	}
	return nil
}

// randomCredential returns a URL-safe string carrying n bytes of randomness.
func randomCredential(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
