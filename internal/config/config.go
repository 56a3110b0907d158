// Package config loads the transfer tool's settings from an optional TOML
// file overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/example/token-transfer/internal/auth"
	"github.com/example/token-transfer/internal/holding"
	"github.com/example/token-transfer/internal/security"
)

// Ledger transports. TransportGRPC speaks the StateService over gRPC with
// JSON frames, which suits JSON-transcoding gateways and in-process tests but
// not a participant's native protobuf endpoint.
const (
	TransportJSON = "json"
	TransportGRPC = "grpc-json"
)

const (
	DefaultValidity    = 5 * time.Hour
	DefaultHTTPTimeout = 30 * time.Second
	DefaultAPIAddr     = ":8080"
)

// Config holds the application configuration.
type Config struct {
	LedgerHost       string
	LedgerTransport  string
	LedgerGRPCTarget string
	LedgerTLS        security.TLSConfig

	RegistryURL          string
	DecentralizedPartyID string

	PartyID          string
	InstrumentID     string
	InstrumentAdmin  string
	HoldingInterface string
	Validity         time.Duration
	Reason           string

	AccessToken string
	Keycloak    auth.PasswordGrantConfig
	// APIToken is the bearer token operators present to the daemon when it
	// holds ledger credentials of its own.
	APIToken    string

	JournalDSN  string
	AuditLog    string
	APIAddr     string
	HTTPTimeout time.Duration
	LogLevel    slog.Level
}

// fileConfig maps config.toml keys.
type fileConfig struct {
	Ledger struct {
		Host       string `toml:"host"`
		Transport  string `toml:"transport"`
		GRPCTarget string `toml:"grpc_target"`
		TLSCA      string `toml:"tls_ca"`
		TLSCert    string `toml:"tls_cert"`
		TLSKey     string `toml:"tls_key"`
	} `toml:"ledger"`
	Registry struct {
		URL                  string `toml:"url"`
		DecentralizedPartyID string `toml:"decentralized_party_id"`
	} `toml:"registry"`
	Transfer struct {
		PartyID          string `toml:"party_id"`
		InstrumentID     string `toml:"instrument_id"`
		InstrumentAdmin  string `toml:"instrument_admin"`
		HoldingInterface string `toml:"holding_interface_id"`
		Validity         string `toml:"validity"`
		Reason           string `toml:"reason"`
	} `toml:"transfer"`
	Keycloak struct {
		Host     string `toml:"host"`
		Realm    string `toml:"realm"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
	} `toml:"keycloak"`
	JournalDSN  string `toml:"journal_dsn"`
	AuditLog    string `toml:"audit_log"`
	APIAddr     string `toml:"api_addr"`
	APIToken    string `toml:"api_token"`
	HTTPTimeout string `toml:"http_timeout"`
	LogLevel    string `toml:"log_level"`
}

func Defaults() *Config {
	return &Config{
		LedgerTransport:  TransportJSON,
		HoldingInterface: holding.InterfaceID,
		Validity:         DefaultValidity,
		APIAddr:          DefaultAPIAddr,
		HTTPTimeout:      DefaultHTTPTimeout,
		LogLevel:         slog.LevelInfo,
	}
}

// Load reads the file named by TRANSFER_CONFIG, if any, then the
// environment, and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("TRANSFER_CONFIG"))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}

	set := func(key string, dst *string, v string) {
		if meta.IsDefined(strings.Split(key, ".")...) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("ledger.host", &c.LedgerHost, raw.Ledger.Host)
	set("ledger.transport", &c.LedgerTransport, raw.Ledger.Transport)
	set("ledger.grpc_target", &c.LedgerGRPCTarget, raw.Ledger.GRPCTarget)
	set("ledger.tls_ca", &c.LedgerTLS.CAFile, raw.Ledger.TLSCA)
	set("ledger.tls_cert", &c.LedgerTLS.CertFile, raw.Ledger.TLSCert)
	set("ledger.tls_key", &c.LedgerTLS.KeyFile, raw.Ledger.TLSKey)
	set("registry.url", &c.RegistryURL, raw.Registry.URL)
	set("registry.decentralized_party_id", &c.DecentralizedPartyID, raw.Registry.DecentralizedPartyID)
	set("transfer.party_id", &c.PartyID, raw.Transfer.PartyID)
	set("transfer.instrument_id", &c.InstrumentID, raw.Transfer.InstrumentID)
	set("transfer.instrument_admin", &c.InstrumentAdmin, raw.Transfer.InstrumentAdmin)
	set("transfer.holding_interface_id", &c.HoldingInterface, raw.Transfer.HoldingInterface)
	set("transfer.reason", &c.Reason, raw.Transfer.Reason)
	set("keycloak.host", &c.Keycloak.Host, raw.Keycloak.Host)
	set("keycloak.realm", &c.Keycloak.Realm, raw.Keycloak.Realm)
	set("keycloak.client_id", &c.Keycloak.ClientID, raw.Keycloak.ClientID)
	set("keycloak.username", &c.Keycloak.Username, raw.Keycloak.Username)
	set("journal_dsn", &c.JournalDSN, raw.JournalDSN)
	set("audit_log", &c.AuditLog, raw.AuditLog)
	set("api_addr", &c.APIAddr, raw.APIAddr)
	set("api_token", &c.APIToken, raw.APIToken)

	if meta.IsDefined("transfer", "validity") {
		if err := parseDuration("transfer.validity", raw.Transfer.Validity, &c.Validity); err != nil {
			return err
		}
	}
	if meta.IsDefined("http_timeout") {
		if err := parseDuration("http_timeout", raw.HTTPTimeout, &c.HTTPTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("log_level") {
		if err := c.LogLevel.UnmarshalText([]byte(raw.LogLevel)); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LEDGER_HOST", &c.LedgerHost)
	str("LEDGER_TRANSPORT", &c.LedgerTransport)
	str("LEDGER_GRPC_TARGET", &c.LedgerGRPCTarget)
	str("LEDGER_TLS_CA", &c.LedgerTLS.CAFile)
	str("LEDGER_TLS_CERT", &c.LedgerTLS.CertFile)
	str("LEDGER_TLS_KEY", &c.LedgerTLS.KeyFile)
	str("REGISTRY_URL", &c.RegistryURL)
	str("DECENTRALIZED_PARTY_ID", &c.DecentralizedPartyID)
	str("PARTY_ID", &c.PartyID)
	str("INSTRUMENT_ID", &c.InstrumentID)
	str("INSTRUMENT_ADMIN", &c.InstrumentAdmin)
	str("HOLDING_INTERFACE_ID", &c.HoldingInterface)
	str("TRANSFER_REASON", &c.Reason)
	str("ACCESS_TOKEN", &c.AccessToken)
	str("KEYCLOAK_HOST", &c.Keycloak.Host)
	str("KEYCLOAK_REALM", &c.Keycloak.Realm)
	str("KEYCLOAK_CLIENT_ID", &c.Keycloak.ClientID)
	str("KEYCLOAK_USERNAME", &c.Keycloak.Username)
	str("KEYCLOAK_PASSWORD", &c.Keycloak.Password)
	str("JOURNAL_DSN", &c.JournalDSN)
	str("AUDIT_LOG", &c.AuditLog)
	str("API_ADDR", &c.APIAddr)
	str("API_TOKEN", &c.APIToken)

	if v, ok := os.LookupEnv("TRANSFER_VALIDITY"); ok {
		if err := parseDuration("TRANSFER_VALIDITY", v, &c.Validity); err != nil {
			return err
		}
	}
	if v, ok := os.LookupEnv("HTTP_TIMEOUT"); ok {
		if err := parseDuration("HTTP_TIMEOUT", v, &c.HTTPTimeout); err != nil {
			return err
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	switch c.LedgerTransport {
	case TransportJSON:
		if c.LedgerHost == "" {
			missing = append(missing, "LEDGER_HOST")
		}
	case TransportGRPC:
		if c.LedgerGRPCTarget == "" {
			missing = append(missing, "LEDGER_GRPC_TARGET")
		}
	case "grpc":
		return fmt.Errorf("LEDGER_TRANSPORT %q (native protobuf) is not supported; use %q or %q for a JSON-framed gateway", c.LedgerTransport, TransportJSON, TransportGRPC)
	default:
		return fmt.Errorf("LEDGER_TRANSPORT must be %q or %q, got %q", TransportJSON, TransportGRPC, c.LedgerTransport)
	}
	if c.RegistryURL == "" {
		missing = append(missing, "REGISTRY_URL")
	}
	if c.DecentralizedPartyID == "" {
		missing = append(missing, "DECENTRALIZED_PARTY_ID")
	}
	if c.PartyID == "" {
		missing = append(missing, "PARTY_ID")
	}
	if c.InstrumentID == "" {
		missing = append(missing, "INSTRUMENT_ID")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if c.KeycloakEnabled() {
		kc := map[string]string{
			"KEYCLOAK_HOST":      c.Keycloak.Host,
			"KEYCLOAK_REALM":     c.Keycloak.Realm,
			"KEYCLOAK_CLIENT_ID": c.Keycloak.ClientID,
			"KEYCLOAK_USERNAME":  c.Keycloak.Username,
			"KEYCLOAK_PASSWORD":  c.Keycloak.Password,
		}
		for _, name := range []string{"KEYCLOAK_HOST", "KEYCLOAK_REALM", "KEYCLOAK_CLIENT_ID", "KEYCLOAK_USERNAME", "KEYCLOAK_PASSWORD"} {
			if kc[name] == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return errors.New("incomplete keycloak login, missing: " + strings.Join(missing, ", "))
		}
		if c.AccessToken != "" {
			return errors.New("ACCESS_TOKEN and KEYCLOAK_* are mutually exclusive")
		}
	}

	if c.Validity <= 0 {
		return fmt.Errorf("TRANSFER_VALIDITY must be positive, got %s", c.Validity)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must not be negative, got %s", c.HTTPTimeout)
	}
	if (c.LedgerTLS.CertFile == "") != (c.LedgerTLS.KeyFile == "") {
		return errors.New("LEDGER_TLS_CERT and LEDGER_TLS_KEY must be set together")
	}
	return nil
}

func (c *Config) KeycloakEnabled() bool {
	kc := c.Keycloak
	return kc.Host != "" || kc.Realm != "" || kc.ClientID != "" || kc.Username != "" || kc.Password != ""
}

// TokenSource returns the configured outbound token source, or nil when
// tokens are expected to come from callers.
func (c *Config) TokenSource(httpClient *http.Client) auth.TokenSource {
	switch {
	case c.KeycloakEnabled():
		return auth.NewPasswordGrant(c.Keycloak, httpClient)
	case c.AccessToken != "":
		return auth.StaticToken(c.AccessToken)
	}
	return nil
}

// Admin is the instrument admin, defaulting to the decentralized party.
func (c *Config) Admin() string {
	if c.InstrumentAdmin != "" {
		return c.InstrumentAdmin
	}
	return c.DecentralizedPartyID
}

func parseDuration(name, v string, dst *time.Duration) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
