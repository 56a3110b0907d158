package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/token-transfer/internal/auth"
	"github.com/example/token-transfer/internal/holding"
)

var envNames = []string{
	"TRANSFER_CONFIG", "LEDGER_HOST", "LEDGER_TRANSPORT", "LEDGER_GRPC_TARGET",
	"LEDGER_TLS_CA", "LEDGER_TLS_CERT", "LEDGER_TLS_KEY", "REGISTRY_URL",
	"DECENTRALIZED_PARTY_ID", "PARTY_ID", "INSTRUMENT_ID", "INSTRUMENT_ADMIN",
	"HOLDING_INTERFACE_ID", "TRANSFER_VALIDITY", "TRANSFER_REASON", "ACCESS_TOKEN",
	"KEYCLOAK_HOST", "KEYCLOAK_REALM", "KEYCLOAK_CLIENT_ID", "KEYCLOAK_USERNAME",
	"KEYCLOAK_PASSWORD", "JOURNAL_DSN", "AUDIT_LOG", "API_ADDR", "API_TOKEN", "HTTP_TIMEOUT",
	"LOG_LEVEL",
}

// clearEnv unsets every variable the loader reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		if v, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			name, v := name, v
			t.Cleanup(func() { _ = os.Setenv(name, v) })
		}
	}
}

func setRequired(t *testing.T) {
	t.Setenv("LEDGER_HOST", "http://participant:7575")
	t.Setenv("REGISTRY_URL", "https://registry.example")
	t.Setenv("DECENTRALIZED_PARTY_ID", "dso::1220")
	t.Setenv("PARTY_ID", "alice::1220")
	t.Setenv("INSTRUMENT_ID", "CBTC")
}

func TestLoadReportsAllMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	for _, name := range []string{"LEDGER_HOST", "REGISTRY_URL", "DECENTRALIZED_PARTY_ID", "PARTY_ID", "INSTRUMENT_ID"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportJSON, cfg.LedgerTransport)
	assert.Equal(t, holding.InterfaceID, cfg.HoldingInterface)
	assert.Equal(t, 5*time.Hour, cfg.Validity)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, "dso::1220", cfg.Admin())
	assert.Nil(t, cfg.TokenSource(nil))
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LEDGER_TRANSPORT", "grpc-json")
	t.Setenv("LEDGER_GRPC_TARGET", "participant:5001")
	t.Setenv("API_TOKEN", "operator")
	t.Setenv("TRANSFER_VALIDITY", "90m")
	t.Setenv("INSTRUMENT_ADMIN", "issuer::1220")
	t.Setenv("ACCESS_TOKEN", "tok")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportGRPC, cfg.LedgerTransport)
	assert.Equal(t, 90*time.Minute, cfg.Validity)
	assert.Equal(t, "issuer::1220", cfg.Admin())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "operator", cfg.APIToken)
	assert.Equal(t, auth.StaticToken("tok"), cfg.TokenSource(nil))
}

func TestLoadRejectsNativeGRPCTransport(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("LEDGER_TRANSPORT", "grpc")
	t.Setenv("LEDGER_GRPC_TARGET", "participant:5001")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native protobuf")
	assert.Contains(t, err.Error(), TransportGRPC)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad transport":       {"LEDGER_TRANSPORT": "websocket"},
		"grpc without target": {"LEDGER_TRANSPORT": "grpc-json"},
		"zero validity":       {"TRANSFER_VALIDITY": "0s"},
		"negative validity":   {"TRANSFER_VALIDITY": "-1h"},
		"garbage validity":    {"TRANSFER_VALIDITY": "soon"},
		"partial keycloak":    {"KEYCLOAK_HOST": "https://id.example", "KEYCLOAK_REALM": "canton"},
		"token and keycloak": {
			"ACCESS_TOKEN": "tok", "KEYCLOAK_HOST": "h", "KEYCLOAK_REALM": "r",
			"KEYCLOAK_CLIENT_ID": "c", "KEYCLOAK_USERNAME": "u", "KEYCLOAK_PASSWORD": "p",
		},
		"cert without key": {"LEDGER_TLS_CERT": "client.crt"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFileWithEnvOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "transfer.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
journal_dsn = "sqlite://transfers.db"
http_timeout = "10s"

[ledger]
host = "http://file-participant:7575"

[registry]
url = "https://registry.example"
decentralized_party_id = "dso::1220"

[transfer]
party_id = "alice::1220"
instrument_id = "CBTC"
validity = "2h"
reason = "settlement"

[keycloak]
host = "https://id.example"
realm = "canton"
client_id = "transfer-cli"
username = "alice"
`), 0600))

	t.Setenv("TRANSFER_CONFIG", path)
	t.Setenv("LEDGER_HOST", "http://env-participant:7575")
	t.Setenv("KEYCLOAK_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env-participant:7575", cfg.LedgerHost)
	assert.Equal(t, "sqlite://transfers.db", cfg.JournalDSN)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Validity)
	assert.Equal(t, "settlement", cfg.Reason)
	assert.True(t, cfg.KeycloakEnabled())
	assert.IsType(t, &auth.PasswordGrant{}, cfg.TokenSource(nil))
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "transfer.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ledger]\nhots = \"typo\"\n"), 0600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hots")
}
