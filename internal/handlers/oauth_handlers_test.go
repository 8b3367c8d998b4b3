package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"authserv/internal/caching"
	"authserv/internal/common"
	"authserv/internal/config"
	"authserv/internal/models"
	"authserv/internal/oauth2"
	"authserv/internal/repositories"
	"authserv/internal/services"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// memoryCache is an in-process caching.CacheService for handler tests.
type memoryCache struct {
	sessions map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sessions: make(map[string]string)}
}

func (c *memoryCache) SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	c.sessions[sessionID] = userID
	return nil
}

func (c *memoryCache) GetSession(ctx context.Context, sessionID string) (string, error) {
	userID, ok := c.sessions[sessionID]
	if !ok {
		return "", errors.New("session not found")
	}
	return userID, nil
}

func (c *memoryCache) DeleteSession(ctx context.Context, sessionID string) error {
	delete(c.sessions, sessionID)
	return nil
}

func (c *memoryCache) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

func (c *memoryCache) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	return nil
}

var _ caching.CacheService = (*memoryCache)(nil)

type OAuthHandlersTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	cache    *memoryCache
	handlers *OAuthHandlers
	echo     *echo.Echo
	userID   uuid.UUID
}

func (suite *OAuthHandlersTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.cache = newMemoryCache()
	suite.userID = uuid.New()

	cfg := &config.OAuth{
		Signing:                config.Signing{Issuer: "https://auth.test.local", Key: "test-key", Algorithm: "HS256", ExpiresIn: 3600},
		CodeTTL:                300,
		TokenExpiresIn:         map[string]int{"authorization_code": 864000, "implicit": 3600, "refresh_token": 864000},
		RefreshGraceMultiplier: 2,
		AllowImplicitFlow:      true,
	}

	users := repositories.NewUserRepo(mock)
	clients := repositories.NewClientRepo(mock)
	codes := repositories.NewCodeRepo(mock)
	tokens := repositories.NewTokenRepo(mock)

	tokenSvc := services.NewTokenService(tokens, users, cfg)
	sessionSvc := services.NewSessionService(users, suite.cache, time.Hour)
	engine := oauth2.NewEngine(clients, codes, tokens, users, tokenSvc, cfg)
	consentSvc := services.NewConsentService(engine, sessionSvc)

	suite.handlers = NewOAuthHandlers(engine, consentSvc, tokenSvc)
	suite.echo = echo.New()
}

func (suite *OAuthHandlersTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestOAuthHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(OAuthHandlersTestSuite))
}

func (suite *OAuthHandlersTestSuite) expectClientLookup() {
	suite.mock.ExpectQuery(`SELECT .+ FROM oauth2_clients WHERE client_id = \$1`).
		WithArgs("client-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "client_id", "client_secret", "user_id", "client_name", "client_uri", "grant_types", "response_types", "redirect_uris", "scope", "token_endpoint_auth_method", "code_challenge_method", "is_internal", "client_id_issued_at"}).
			AddRow(uuid.New(), "client-1", "s3cret", suite.userID, "Test App", nil,
				[]string{"authorization_code", "refresh_token"}, []string{"code"},
				[]string{"https://cb.example/cb"}, "openid profile email",
				models.AuthMethodClientSecretBasic, nil, false, time.Now()))
}

func (suite *OAuthHandlersTestSuite) expectUserLookup() {
	email := "alice@example.com"
	suite.mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "email_verified", "name", "given_name", "family_name", "phone_number", "mobile_number", "created_at", "updated_at"}).
			AddRow(suite.userID, "alice", &email, true, nil, nil, nil, nil, nil, time.Now(), time.Now()))
}

func (suite *OAuthHandlersTestSuite) postForm(path string, form url.Values) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return rec, suite.echo.NewContext(req, rec)
}

func (suite *OAuthHandlersTestSuite) TestToken_AuthorizationCodeExchange() {
	suite.expectClientLookup()
	suite.mock.ExpectQuery(`DELETE FROM oauth2_codes WHERE code = \$1 AND client_id = \$2 RETURNING`).
		WithArgs("code-1", "client-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "code", "client_id", "user_id", "redirect_uri", "scope", "nonce", "code_challenge", "code_challenge_method", "auth_time", "expires_in"}).
			AddRow(uuid.New(), "code-1", "client-1", suite.userID, "https://cb.example/cb",
				"profile email", nil, nil, nil, time.Now(), 300))
	suite.expectUserLookup()
	suite.mock.ExpectExec(`INSERT INTO oauth2_tokens`).
		WithArgs(pgxmock.AnyArg(), suite.userID, "client-1", "Bearer",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "profile email", 864000).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, c := suite.postForm("/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"code-1"},
		"redirect_uri":  {"https://cb.example/cb"},
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
	})

	require.NoError(suite.T(), suite.handlers.Token(c))
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "no-store", rec.Header().Get("Cache-Control"))

	var resp map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(suite.T(), resp["access_token"])
	assert.NotEmpty(suite.T(), resp["refresh_token"])
	assert.Equal(suite.T(), "Bearer", resp["token_type"])
	assert.Equal(suite.T(), "profile email", resp["scope"])
	assert.Equal(suite.T(), float64(864000), resp["expires_in"])
}

func (suite *OAuthHandlersTestSuite) TestToken_BasicAuthOverridesFormCredentials() {
	suite.expectClientLookup()

	// The form carries the right secret; the wrong Basic credentials must win.
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"code-1"},
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth("client-1", "wrong")
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	require.NoError(suite.T(), suite.handlers.Token(c))
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	var resp map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "invalid_client", resp["error"])
}

func (suite *OAuthHandlersTestSuite) TestToken_UnknownClient() {
	suite.mock.ExpectQuery(`SELECT .+ FROM oauth2_clients WHERE client_id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	rec, c := suite.postForm("/oauth/token", url.Values{
		"grant_type": {"authorization_code"},
		"client_id":  {"ghost"},
	})

	require.NoError(suite.T(), suite.handlers.Token(c))
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	var resp map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "invalid_client", resp["error"])
}

func (suite *OAuthHandlersTestSuite) TestToken_UnsupportedGrantType() {
	suite.expectClientLookup()

	rec, c := suite.postForm("/oauth/token", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
	})

	require.NoError(suite.T(), suite.handlers.Token(c))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "unsupported_grant_type", resp["error"])
}

func (suite *OAuthHandlersTestSuite) TestAuthorizePost_DeniedRedirectsWithError() {
	suite.expectClientLookup()

	rec, c := suite.postForm("/oauth/authorize", url.Values{
		"client_id":     {"client-1"},
		"redirect_uri":  {"https://cb.example/cb"},
		"response_type": {"code"},
		"scope":         {"profile"},
		"state":         {"xyz"},
		"confirm":       {"false"},
	})

	require.NoError(suite.T(), suite.handlers.AuthorizePost(c))
	assert.Equal(suite.T(), http.StatusFound, rec.Code)

	location := rec.Header().Get(echo.HeaderLocation)
	assert.Contains(suite.T(), location, "error=access_denied")
	assert.Contains(suite.T(), location, "state=xyz")
}

func (suite *OAuthHandlersTestSuite) TestRevoke_MissingToken() {
	rec, c := suite.postForm("/oauth/revoke", url.Values{})

	require.NoError(suite.T(), suite.handlers.Revoke(c))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *OAuthHandlersTestSuite) TestRevoke_UnknownTokenStillSucceeds() {
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE access_token = \$1`).
		WithArgs("garbage").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	suite.mock.ExpectExec(`UPDATE oauth2_tokens SET revoked = true WHERE refresh_token = \$1`).
		WithArgs("garbage").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rec, c := suite.postForm("/oauth/revoke", url.Values{"token": {"garbage"}})

	require.NoError(suite.T(), suite.handlers.Revoke(c))
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
}

func (suite *OAuthHandlersTestSuite) TestUserInfo_ReturnsClaims() {
	email := "alice@example.com"
	user := &models.User{ID: suite.userID, Username: "alice", Email: &email, EmailVerified: true, UpdatedAt: time.Now()}

	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req = req.WithContext(common.WithAuthContext(req.Context(), &common.AuthContext{User: user, Scope: "openid profile"}))
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	require.NoError(suite.T(), suite.handlers.UserInfo(c))
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	var claims map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &claims))
	assert.Equal(suite.T(), suite.userID.String(), claims["sub"])
	assert.Equal(suite.T(), "alice", claims["preferred_username"])
	assert.Equal(suite.T(), "alice@example.com", claims["email"])
}

func (suite *OAuthHandlersTestSuite) TestUserInfo_Unauthenticated() {
	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	err := suite.handlers.UserInfo(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(suite.T(), err, &httpErr)
	assert.Equal(suite.T(), http.StatusUnauthorized, httpErr.Code)
}
