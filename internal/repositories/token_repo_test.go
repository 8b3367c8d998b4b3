package repositories

import (
	"context"
	"testing"
	"time"

	"authserv/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type TokenRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    TokenRepository
	userID  uuid.UUID
	context context.Context
}

func (suite *TokenRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewTokenRepo(mock)
	suite.userID = uuid.New()
	suite.context = context.Background()
}

func (suite *TokenRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestTokenRepoTestSuite(t *testing.T) {
	suite.Run(t, new(TokenRepoTestSuite))
}

func (suite *TokenRepoTestSuite) sampleToken() *models.Token {
	refresh := "rt-1"
	return &models.Token{
		ID:           uuid.New(),
		UserID:       suite.userID,
		ClientID:     "client-1",
		TokenType:    "Bearer",
		AccessToken:  "at-1",
		RefreshToken: &refresh,
		Scope:        "openid profile",
		IssuedAt:     time.Now(),
		ExpiresIn:    3600,
	}
}

func (suite *TokenRepoTestSuite) tokenRow(token *models.Token) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "user_id", "client_id", "token_type", "access_token", "refresh_token", "scope", "issued_at", "expires_in", "revoked"}).
		AddRow(token.ID, token.UserID, token.ClientID, token.TokenType, token.AccessToken,
			token.RefreshToken, token.Scope, token.IssuedAt, token.ExpiresIn, token.Revoked)
}

func (suite *TokenRepoTestSuite) TestCreate_Success() {
	token := suite.sampleToken()

	suite.mock.ExpectExec(`
		INSERT INTO oauth2_tokens \(id, user_id, client_id, token_type, access_token, refresh_token, scope, issued_at, expires_in, revoked\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, NOW\(\), \$8, false\)
	`).WithArgs(token.ID, token.UserID, token.ClientID, token.TokenType,
		token.AccessToken, token.RefreshToken, token.Scope, token.ExpiresIn).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, token)
	assert.NoError(suite.T(), err)
}

func (suite *TokenRepoTestSuite) TestGetByAccessToken_Success() {
	token := suite.sampleToken()

	suite.mock.ExpectQuery(`SELECT .+ FROM oauth2_tokens WHERE access_token = \$1`).
		WithArgs("at-1").
		WillReturnRows(suite.tokenRow(token))

	result, err := suite.repo.GetByAccessToken(suite.context, "at-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), token.AccessToken, result.AccessToken)
	assert.Equal(suite.T(), token.UserID, result.UserID)
	assert.False(suite.T(), result.Revoked)
}

func (suite *TokenRepoTestSuite) TestGetByAccessToken_NotFound() {
	suite.mock.ExpectQuery(`SELECT .+ FROM oauth2_tokens WHERE access_token = \$1`).
		WithArgs("at-unknown").
		WillReturnError(pgx.ErrNoRows)

	result, err := suite.repo.GetByAccessToken(suite.context, "at-unknown")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), result)
}

func (suite *TokenRepoTestSuite) TestGetByRefreshToken_Success() {
	token := suite.sampleToken()

	suite.mock.ExpectQuery(`SELECT .+ FROM oauth2_tokens WHERE refresh_token = \$1`).
		WithArgs("rt-1").
		WillReturnRows(suite.tokenRow(token))

	result, err := suite.repo.GetByRefreshToken(suite.context, "rt-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "rt-1", *result.RefreshToken)
}

func (suite *TokenRepoTestSuite) TestRevokeRefreshOnce_Success() {
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = \$1 AND revoked = false`).
		WithArgs("rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.RevokeRefreshOnce(suite.context, "rt-1")
	assert.NoError(suite.T(), err)
}

func (suite *TokenRepoTestSuite) TestRevokeRefreshOnce_AlreadyRevoked() {
	// A racing rotation already claimed the row; zero rows affected maps to
	// ErrNotFound so the caller fails the grant instead of double-issuing.
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = \$1 AND revoked = false`).
		WithArgs("rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.RevokeRefreshOnce(suite.context, "rt-1")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *TokenRepoTestSuite) TestRevokeByAccessToken() {
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE access_token = \$1`).
		WithArgs("at-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.RevokeByAccessToken(suite.context, "at-1")
	assert.NoError(suite.T(), err)
}

func (suite *TokenRepoTestSuite) TestRevokeByAccessToken_UnknownTokenIsQuiet() {
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE access_token = \$1`).
		WithArgs("at-unknown").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.RevokeByAccessToken(suite.context, "at-unknown")
	assert.NoError(suite.T(), err)
}

func (suite *TokenRepoTestSuite) TestRevokeByRefreshToken() {
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = \$1`).
		WithArgs("rt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.repo.RevokeByRefreshToken(suite.context, "rt-1")
	assert.NoError(suite.T(), err)
}

func (suite *TokenRepoTestSuite) TestDeleteExpired() {
	suite.mock.ExpectExec(`DELETE FROM oauth2_tokens WHERE issued_at`).
		WithArgs(2).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	deleted, err := suite.repo.DeleteExpired(suite.context, 2)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(5), deleted)
}
