package repositories

import (
	"context"
	"errors"

	"authserv/internal/models"

	"github.com/jackc/pgx/v5"
)

type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	GetByAccessToken(ctx context.Context, accessToken string) (*models.Token, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error)
	// RevokeRefreshOnce flips revoked on the row holding refreshToken iff it is
	// not already revoked. Returns ErrNotFound when a racing rotation already
	// claimed the token, so only one successor pair is ever issued.
	RevokeRefreshOnce(ctx context.Context, refreshToken string) error
	RevokeByAccessToken(ctx context.Context, accessToken string) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	DeleteExpired(ctx context.Context, graceMultiplier int) (int64, error)
}

type tokenRepo struct {
	db Database
}

func NewTokenRepo(db Database) TokenRepository {
	return &tokenRepo{db: db}
}

const tokenColumns = `id, user_id, client_id, token_type, access_token, refresh_token, scope, issued_at, expires_in, revoked`

func scanToken(row pgx.Row) (*models.Token, error) {
	token := &models.Token{}
	err := row.Scan(&token.ID, &token.UserID, &token.ClientID, &token.TokenType,
		&token.AccessToken, &token.RefreshToken, &token.Scope, &token.IssuedAt,
		&token.ExpiresIn, &token.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *tokenRepo) Create(ctx context.Context, token *models.Token) error {
	query := `
		INSERT INTO oauth2_tokens (id, user_id, client_id, token_type, access_token, refresh_token, scope, issued_at, expires_in, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, false)
	`
	_, err := r.db.Exec(ctx, query, token.ID, token.UserID, token.ClientID,
		token.TokenType, token.AccessToken, token.RefreshToken, token.Scope, token.ExpiresIn)
	return err
}

func (r *tokenRepo) GetByAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM oauth2_tokens WHERE access_token = $1`
	return scanToken(r.db.QueryRow(ctx, query, accessToken))
}

func (r *tokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM oauth2_tokens WHERE refresh_token = $1`
	return scanToken(r.db.QueryRow(ctx, query, refreshToken))
}

func (r *tokenRepo) RevokeRefreshOnce(ctx context.Context, refreshToken string) error {
	query := `UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = $1 AND revoked = false`
	tag, err := r.db.Exec(ctx, query, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tokenRepo) RevokeByAccessToken(ctx context.Context, accessToken string) error {
	query := `UPDATE oauth2_tokens SET revoked = true WHERE access_token = $1`
	_, err := r.db.Exec(ctx, query, accessToken)
	return err
}

func (r *tokenRepo) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	query := `UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = $1`
	_, err := r.db.Exec(ctx, query, refreshToken)
	return err
}

// DeleteExpired purges rows past the extended refresh window. Storage hygiene
// only; protocol correctness never depends on this running.
func (r *tokenRepo) DeleteExpired(ctx context.Context, graceMultiplier int) (int64, error) {
	query := `DELETE FROM oauth2_tokens WHERE issued_at + (expires_in * $1 * interval '1 second') < NOW()`
	tag, err := r.db.Exec(ctx, query, graceMultiplier)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
