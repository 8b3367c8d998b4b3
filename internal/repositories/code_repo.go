package repositories

import (
	"context"
	"errors"

	"authserv/internal/models"

	"github.com/jackc/pgx/v5"
)

type CodeRepository interface {
	Create(ctx context.Context, code *models.AuthorizationCode) error
	Get(ctx context.Context, code, clientID string) (*models.AuthorizationCode, error)
	// ConsumeOnce atomically deletes the code and returns it. When two
	// exchanges race, exactly one caller gets the row; the other sees
	// ErrNotFound.
	ConsumeOnce(ctx context.Context, code, clientID string) (*models.AuthorizationCode, error)
	ExistsNonce(ctx context.Context, clientID, nonce string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type codeRepo struct {
	db Database
}

func NewCodeRepo(db Database) CodeRepository {
	return &codeRepo{db: db}
}

const codeColumns = `id, code, client_id, user_id, redirect_uri, scope, nonce, code_challenge, code_challenge_method, auth_time, expires_in`

func scanCode(row pgx.Row) (*models.AuthorizationCode, error) {
	code := &models.AuthorizationCode{}
	err := row.Scan(&code.ID, &code.Code, &code.ClientID, &code.UserID,
		&code.RedirectURI, &code.Scope, &code.Nonce, &code.CodeChallenge,
		&code.CodeChallengeMethod, &code.AuthTime, &code.ExpiresIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return code, nil
}

func (r *codeRepo) Create(ctx context.Context, code *models.AuthorizationCode) error {
	query := `
		INSERT INTO oauth2_codes (id, code, client_id, user_id, redirect_uri, scope, nonce, code_challenge, code_challenge_method, auth_time, expires_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10)
	`
	_, err := r.db.Exec(ctx, query, code.ID, code.Code, code.ClientID, code.UserID,
		code.RedirectURI, code.Scope, code.Nonce, code.CodeChallenge,
		code.CodeChallengeMethod, code.ExpiresIn)
	return err
}

func (r *codeRepo) Get(ctx context.Context, code, clientID string) (*models.AuthorizationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM oauth2_codes WHERE code = $1 AND client_id = $2`
	return scanCode(r.db.QueryRow(ctx, query, code, clientID))
}

func (r *codeRepo) ConsumeOnce(ctx context.Context, code, clientID string) (*models.AuthorizationCode, error) {
	query := `DELETE FROM oauth2_codes WHERE code = $1 AND client_id = $2 RETURNING ` + codeColumns
	return scanCode(r.db.QueryRow(ctx, query, code, clientID))
}

// ExistsNonce checks (client_id, nonce) uniqueness across issued codes.
// A nonce must never be reused for the same client.
func (r *codeRepo) ExistsNonce(ctx context.Context, clientID, nonce string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM oauth2_codes WHERE client_id = $1 AND nonce = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, clientID, nonce).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM oauth2_codes WHERE auth_time + (expires_in * interval '1 second') < NOW()`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
