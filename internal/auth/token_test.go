package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/token-transfer/internal/failure"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(exp)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type fakeKeycloak struct {
	status int
	exp    time.Time
	calls  atomic.Int32
	form   map[string]string
	mu     sync.Mutex
}

func (k *fakeKeycloak) server(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.calls.Add(1)
		if r.URL.Path != "/realms/canton/protocol/openid-connect/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		k.mu.Lock()
		k.form = map[string]string{
			"grant_type": r.PostForm.Get("grant_type"),
			"client_id":  r.PostForm.Get("client_id"),
			"username":   r.PostForm.Get("username"),
			"password":   r.PostForm.Get("password"),
		}
		k.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if k.status != 0 && k.status != http.StatusOK {
			w.WriteHeader(k.status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: signedToken(t, k.exp),
			TokenType:   "Bearer",
			ExpiresIn:   300,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func grantFor(ts *httptest.Server) *PasswordGrant {
	return NewPasswordGrant(PasswordGrantConfig{
		Host:     ts.URL + "/",
		Realm:    "canton",
		ClientID: "transfer-cli",
		Username: "alice",
		Password: "secret",
	}, ts.Client())
}

func TestPasswordURL(t *testing.T) {
	assert.Equal(t, "https://id.example/realms/canton/protocol/openid-connect/token", PasswordURL("https://id.example/", "canton"))
}

func TestPasswordGrantCachesUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	kc := &fakeKeycloak{exp: now.Add(5 * time.Minute)}
	ts := kc.server(t)

	g := grantFor(ts)
	g.now = func() time.Time { return now }

	first, err := g.Token(context.Background())
	require.NoError(t, err)
	second, err := g.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), kc.calls.Load())
	assert.Equal(t, map[string]string{
		"grant_type": "password",
		"client_id":  "transfer-cli",
		"username":   "alice",
		"password":   "secret",
	}, kc.form)

	// Inside the skew window the token is refreshed.
	now = now.Add(5*time.Minute - DefaultExpirySkew/2)
	_, err = g.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), kc.calls.Load())
}

func TestPasswordGrantConcurrentCallersShareLogin(t *testing.T) {
	kc := &fakeKeycloak{exp: time.Now().Add(time.Hour)}
	g := grantFor(kc.server(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), kc.calls.Load())
}

func TestPasswordGrantErrors(t *testing.T) {
	kc := &fakeKeycloak{status: http.StatusUnauthorized}
	_, err := grantFor(kc.server(t)).Token(context.Background())
	var authErr *failure.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "invalid_grant")

	kc = &fakeKeycloak{status: http.StatusBadGateway}
	_, err = grantFor(kc.server(t)).Token(context.Background())
	var transportErr *failure.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.Equal(t, failure.KindAuth, failure.KindOf(err))
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := ExpiresAt(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = ExpiresAt("opaque-token")
	assert.False(t, ok)
}
