// Package ghapp exchanges a GitHub App identity for short-lived
// installation access tokens.
package ghapp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/postdesk/internal/apperr"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"
	// UserAgent identifies postdesk to GitHub.
	UserAgent = "postdesk/1.0"

	clockSkew = 60 * time.Second
	jwtTTL    = 9 * time.Minute
)

// TokenSource yields a bearer token for a single remote operation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// InstallationToken is the credential returned by the token endpoint.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AppTokenSource mints installation tokens by signing an app assertion.
// It keeps no token between calls.
type AppTokenSource struct {
	appID          string
	installationID string
	key            *rsa.PrivateKey
	apiURL         string
	client         *http.Client
	now            func() time.Time
}

// Option configures an AppTokenSource.
type Option func(*AppTokenSource)

// WithAPIURL overrides the GitHub API base URL.
func WithAPIURL(u string) Option {
	return func(s *AppTokenSource) {
		if u != "" {
			s.apiURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient sets the client used for the exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(s *AppTokenSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AppTokenSource) { s.now = now }
}

// NewAppTokenSource creates a token source for one app installation.
func NewAppTokenSource(appID, installationID string, key *rsa.PrivateKey, opts ...Option) *AppTokenSource {
	s := &AppTokenSource{
		appID:          appID,
		installationID: installationID,
		key:            key,
		apiURL:         DefaultAPIURL,
		client:         http.DefaultClient,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParsePrivateKey parses an RSA key in PEM form. Newlines escaped as the
// two characters `\n`, as found in environment variables, are restored.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	pemText = strings.ReplaceAll(strings.TrimSpace(pemText), `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("ghapp: parse private key: %w", err)
	}
	return key, nil
}

// AppJWT signs the app assertion. iat is backdated to absorb clock skew
// between us and GitHub.
func (s *AppTokenSource) AppJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("ghapp: sign assertion: %w", err)
	}
	return signed, nil
}

// Token implements TokenSource.
func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	it, err := s.Installation(ctx)
	if err != nil {
		return "", err
	}
	return it.Token, nil
}

// Installation performs one token exchange and returns the full response.
func (s *AppTokenSource) Installation(ctx context.Context) (*InstallationToken, error) {
	id, err := strconv.ParseInt(s.installationID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: installation id %q is not numeric", apperr.ErrValidation, s.installationID)
	}
	assertion, err := s.AppJWT(s.now())
	if err != nil {
		return nil, err
	}
	client, err := NewClient(s.client, s.apiURL, assertion)
	if err != nil {
		return nil, err
	}

	tok, _, err := client.Apps.CreateInstallationToken(ctx, id, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create installation token: %v", apperr.ErrUpstream, err)
	}
	if tok.GetToken() == "" {
		return nil, fmt.Errorf("%w: installation token response has no token", apperr.ErrUpstream)
	}
	return &InstallationToken{Token: tok.GetToken(), ExpiresAt: tok.GetExpiresAt().Time}, nil
}
