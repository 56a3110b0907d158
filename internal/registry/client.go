package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/security"
)

const transferFactoryPath = "/api/token-standard/v0/registrars/%s/registry/transfer-instruction/v1/transfer-factory"

// maxLoggedBody bounds how much of a failed response body is logged.
const maxLoggedBody = 512

type SubmitParams struct {
	RegistryURL          string
	DecentralizedPartyID string
	// AccessToken is optional; the public registry endpoints accept
	// anonymous requests.
	AccessToken string
	Request     TransferRequest
}

// Client submits transfer requests. It holds no per-request state and is safe
// for concurrent use when its http.Client is.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// TransferFactoryURL templates the transfer factory endpoint.
func TransferFactoryURL(registryURL, decentralizedPartyID string) string {
	return strings.TrimRight(registryURL, "/") + fmt.Sprintf(transferFactoryPath, url.PathEscape(decentralizedPartyID))
}

// TransferFactory POSTs the request once. The body is always read before the
// status is interpreted.
func (c *Client) TransferFactory(ctx context.Context, p SubmitParams) (*TransferFactoryResponse, error) {
	const op = "transfer factory"

	if p.RegistryURL == "" || p.DecentralizedPartyID == "" {
		return nil, fmt.Errorf("%w: registry url and decentralized party id are required", failure.ErrInvalidInput)
	}

	payload, err := json.Marshal(p.Request)
	if err != nil {
		return nil, fmt.Errorf("encode transfer request: %w", err)
	}

	target := TransferFactoryURL(p.RegistryURL, p.DecentralizedPartyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", failure.ErrInvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.AccessToken)
	}
	ctx, cid := security.EnsureCorrelationID(ctx)
	req.Header.Set(security.CorrelationIDHeader, cid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "transfer factory rejected request",
			"cid", cid,
			"status", resp.StatusCode,
			"body", truncate(string(body), maxLoggedBody),
		)
		return nil, &failure.RegistrySubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	out, err := DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeResponse validates body against the response schema and decodes it.
func DecodeResponse(body []byte) (*TransferFactoryResponse, error) {
	if err := responseValidator.Validate(body); err != nil {
		return nil, &failure.ResponseDecodeError{Err: err, Body: string(body)}
	}

	var out TransferFactoryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &failure.ResponseDecodeError{Err: err, Body: string(body)}
	}
	out.Raw = append(json.RawMessage(nil), body...)
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
