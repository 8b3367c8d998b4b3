package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Signing holds the JWT configuration used for OIDC ID tokens. It is passed
// explicitly into the token issuer so test and prod configurations can coexist
// in one process.
type Signing struct {
	Issuer    string
	Key       string
	Algorithm string
	ExpiresIn int // seconds
}

// OAuth groups the protocol-level knobs: per-grant-type expiry, the refresh
// grace multiplier, the authorization-code TTL and the scope policy.
type OAuth struct {
	Signing                Signing
	CodeTTL                int            // seconds an authorization code stays valid
	TokenExpiresIn         map[string]int // per grant type, seconds
	RefreshGraceMultiplier int
	AllowImplicitFlow      bool
	StrictScope            bool // reject unknown scopes instead of narrowing
}

// Config is the full process configuration, loaded from the environment.
type Config struct {
	Port          int
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	OAuth         OAuth
}

// ExpiresIn returns the configured lifetime for a grant type, falling back to
// one hour for grant types missing from the table.
func (o *OAuth) ExpiresIn(grantType string) int {
	if ttl, ok := o.TokenExpiresIn[grantType]; ok {
		return ttl
	}
	return 3600
}

// Load reads configuration from the environment. DATABASE_URL is required;
// everything else has a development default.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	signingKey := os.Getenv("OAUTH_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "development-signing-key"
	}

	cfg := &Config{
		Port:          envInt("PORT", 8080),
		DatabaseURL:   databaseURL,
		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		SessionTTL:    time.Duration(envInt("SESSION_TTL_SECONDS", 86400)) * time.Second,
		OAuth: OAuth{
			Signing: Signing{
				Issuer:    envString("OAUTH_ISSUER", "https://authserv.local"),
				Key:       signingKey,
				Algorithm: envString("OAUTH_SIGNING_ALG", "HS256"),
				ExpiresIn: envInt("OAUTH_ID_TOKEN_TTL", 3600),
			},
			CodeTTL: envInt("OAUTH_CODE_TTL", 300),
			TokenExpiresIn: map[string]int{
				"authorization_code": envInt("OAUTH_TTL_AUTHORIZATION_CODE", 864000),
				"implicit":           envInt("OAUTH_TTL_IMPLICIT", 3600),
				"password":           envInt("OAUTH_TTL_PASSWORD", 864000),
				"client_credentials": envInt("OAUTH_TTL_CLIENT_CREDENTIALS", 864000),
				"refresh_token":      envInt("OAUTH_TTL_REFRESH_TOKEN", 864000),
			},
			RefreshGraceMultiplier: envInt("OAUTH_REFRESH_GRACE_MULTIPLIER", 2),
			AllowImplicitFlow:      envBool("OAUTH_ALLOW_IMPLICIT_FLOW", true),
			StrictScope:            envBool("OAUTH_STRICT_SCOPE", false),
		},
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
