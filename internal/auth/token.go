// Package auth supplies bearer tokens for ledger and registry calls and
// carries inbound tokens through the daemon.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/token-transfer/internal/failure"
)

// DefaultExpirySkew is how long before expiry a cached token is refreshed.
const DefaultExpirySkew = 30 * time.Second

// TokenSource returns a bearer token for outbound calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed, externally managed token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", &failure.AuthError{Op: "static token", Err: errors.New("no access token configured")}
	}
	return string(s), nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

type PasswordGrantConfig struct {
	Host     string
	Realm    string
	ClientID string
	Username string
	Password string
}

// PasswordURL is the Keycloak token endpoint for realm.
func PasswordURL(host, realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(host, "/"), url.PathEscape(realm))
}

// PasswordGrant logs in with the OAuth2 resource owner password grant and
// caches the token until shortly before it expires.
type PasswordGrant struct {
	cfg        PasswordGrantConfig
	httpClient *http.Client
	skew       time.Duration
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewPasswordGrant(cfg PasswordGrantConfig, httpClient *http.Client) *PasswordGrant {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PasswordGrant{
		cfg:        cfg,
		httpClient: httpClient,
		skew:       DefaultExpirySkew,
		now:        time.Now,
	}
}

func (p *PasswordGrant) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expires.Add(-p.skew)) {
		return p.token, nil
	}

	resp, err := p.login(ctx)
	if err != nil {
		return "", err
	}

	p.token = resp.AccessToken
	p.expires = p.expiry(resp)
	return p.token, nil
}

func (p *PasswordGrant) login(ctx context.Context) (*TokenResponse, error) {
	const op = "password grant"

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {p.cfg.ClientID},
		"username":   {p.cfg.Username},
		"password":   {p.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, PasswordURL(p.cfg.Host, p.cfg.Realm), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %v", failure.ErrInvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &failure.AuthError{Op: op, Err: fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, oauthError(body))}
	case resp.StatusCode >= 500:
		return nil, &failure.TransportError{Op: op, Err: fmt.Errorf("identity provider returned %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &failure.ProtocolError{Op: op, Err: fmt.Errorf("identity provider returned %d", resp.StatusCode)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &failure.ProtocolError{Op: op, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &failure.ProtocolError{Op: op, Err: errors.New("token response without access_token")}
	}
	return &tr, nil
}

// expiry prefers the token's own exp claim and falls back to expires_in.
func (p *PasswordGrant) expiry(tr *TokenResponse) time.Time {
	if exp, ok := ExpiresAt(tr.AccessToken); ok {
		return exp
	}
	return p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
}

// ExpiresAt reads the exp claim without verifying the signature. The ledger
// and registry verify tokens; this is only used to schedule refreshes.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func oauthError(body []byte) string {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return "unknown error"
	}
	if e.Description != "" {
		return e.Error + ": " + e.Description
	}
	return e.Error
}
