package repositories

import (
	"context"
	"errors"

	"authserv/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByClientID(ctx context.Context, clientID string) (*models.Client, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Client, error)
	Delete(ctx context.Context, clientID string) error
}

type clientRepo struct {
	db Database
}

func NewClientRepo(db Database) ClientRepository {
	return &clientRepo{db: db}
}

const clientColumns = `id, client_id, client_secret, user_id, client_name, client_uri, grant_types, response_types, redirect_uris, scope, token_endpoint_auth_method, code_challenge_method, is_internal, client_id_issued_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	client := &models.Client{}
	err := row.Scan(&client.ID, &client.ClientID, &client.ClientSecret, &client.UserID,
		&client.ClientName, &client.ClientURI, &client.GrantTypes, &client.ResponseTypes,
		&client.RedirectURIs, &client.Scope, &client.TokenEndpointAuthMethod,
		&client.CodeChallengeMethod, &client.IsInternal, &client.ClientIDIssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO oauth2_clients (id, client_id, client_secret, user_id, client_name, client_uri, grant_types, response_types, redirect_uris, scope, token_endpoint_auth_method, code_challenge_method, is_internal, client_id_issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`
	_, err := r.db.Exec(ctx, query, client.ID, client.ClientID, client.ClientSecret,
		client.UserID, client.ClientName, client.ClientURI, client.GrantTypes,
		client.ResponseTypes, client.RedirectURIs, client.Scope,
		client.TokenEndpointAuthMethod, client.CodeChallengeMethod, client.IsInternal)
	return err
}

func (r *clientRepo) GetByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth2_clients WHERE client_id = $1`
	return scanClient(r.db.QueryRow(ctx, query, clientID))
}

func (r *clientRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth2_clients WHERE user_id = $1 ORDER BY client_id_issued_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *clientRepo) Delete(ctx context.Context, clientID string) error {
	query := `DELETE FROM oauth2_clients WHERE client_id = $1`
	_, err := r.db.Exec(ctx, query, clientID)
	return err
}
