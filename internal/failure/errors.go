// Package failure defines the error kinds surfaced by the transfer pipeline.
//
// Every component returns one of these types (possibly wrapped) so callers can
// branch with errors.As without parsing messages.
package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind labels used for metrics, journal records and HTTP status mapping.
const (
	KindNone               = "none"
	KindTransport          = "transport"
	KindAuth               = "auth"
	KindProtocol           = "protocol"
	KindRegistrySubmission = "registry_submission"
	KindResponseDecode     = "response_decode"
	KindInvalidInput       = "invalid_input"
	KindNoHoldings         = "no_holdings"
	KindCanceled           = "canceled"
	KindUnknown            = "unknown"
)

// ErrInvalidInput marks errors caused by caller-supplied values.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoEligibleHoldings means the party holds nothing that can fund the
// transfer. Nothing was submitted.
var ErrNoEligibleHoldings = errors.New("no eligible holdings")

// TransportError is a connection or I/O failure talking to a remote service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError is a rejection of the supplied credentials.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: credentials rejected: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError is a malformed or undecodable payload from the ledger.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RegistrySubmissionError is a non-success HTTP status from the registry.
type RegistrySubmissionError struct {
	StatusCode int
	Body       string
}

func (e *RegistrySubmissionError) Error() string {
	return fmt.Sprintf("transfer factory request failed [%d]: %q", e.StatusCode, e.Body)
}

// ResponseDecodeError is a registry response body that did not match the
// expected schema.
type ResponseDecodeError struct {
	Err  error
	Body string
}

func (e *ResponseDecodeError) Error() string {
	return fmt.Sprintf("failed to parse transfer factory response: %v", e.Err)
}

func (e *ResponseDecodeError) Unwrap() error { return e.Err }

// KindOf classifies err into one of the Kind labels.
func KindOf(err error) string {
	if err == nil {
		return KindNone
	}

	var (
		transportErr *TransportError
		authErr      *AuthError
		protocolErr  *ProtocolError
		submitErr    *RegistrySubmissionError
		decodeErr    *ResponseDecodeError
	)
	switch {
	// Cancellation wins over the transport or protocol error wrapping it.
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &protocolErr):
		return KindProtocol
	case errors.As(err, &submitErr):
		return KindRegistrySubmission
	case errors.As(err, &decodeErr):
		return KindResponseDecode
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNoEligibleHoldings):
		return KindNoHoldings
	}
	return KindUnknown
}
