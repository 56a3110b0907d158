package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/value"
)

var (
	ErrMissingParty      = fmt.Errorf("%w: sender and receiver are required", failure.ErrInvalidInput)
	ErrMissingInstrument = fmt.Errorf("%w: instrument admin and id are required", failure.ErrInvalidInput)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be a positive decimal", failure.ErrInvalidInput)
	ErrInvalidValidity   = fmt.Errorf("%w: validity must be at least one microsecond", failure.ErrInvalidInput)
)

// timestampLayout matches the microsecond precision of ledger timestamps.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type BuildParams struct {
	Sender     string
	Receiver   string
	Amount     string
	Instrument InstrumentID
	// ExpectedAdmin defaults to Instrument.Admin.
	ExpectedAdmin string
	Validity      time.Duration
	HoldingCIDs   []string
	Meta          map[string]string
	Reason        string

	IncludeDebugFields bool
}

// Builder assembles transfer requests. Clock defaults to time.Now. A Builder
// is safe for concurrent use and never issues a requestedAt earlier than one
// it issued before, even if the wall clock steps back.
type Builder struct {
	Clock func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewBuilder() *Builder {
	return &Builder{Clock: time.Now}
}

func (b *Builder) now() time.Time {
	if b == nil || b.Clock == nil {
		return time.Now()
	}
	return b.Clock()
}

// issue returns the next requestedAt, clamped to the last one issued.
// Serialised timestamps need wall-clock time, which carries no monotonic
// guarantee of its own.
func (b *Builder) issue() time.Time {
	t := b.now().UTC().Truncate(time.Microsecond)
	if b == nil {
		return t
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.Before(b.last) {
		t = b.last
	}
	b.last = t
	return t
}

// Build validates p and returns the request. requestedAt is the clock's
// current time and executeBefore is requestedAt plus the validity.
func (b *Builder) Build(p BuildParams) (TransferRequest, error) {
	if strings.TrimSpace(p.Sender) == "" || strings.TrimSpace(p.Receiver) == "" {
		return TransferRequest{}, ErrMissingParty
	}
	if p.Instrument.Admin == "" || p.Instrument.ID == "" {
		return TransferRequest{}, ErrMissingInstrument
	}
	amount, err := NormalizeAmount(p.Amount)
	if err != nil {
		return TransferRequest{}, err
	}
	if p.Validity < time.Microsecond {
		return TransferRequest{}, ErrInvalidValidity
	}

	requestedAt := b.issue()
	executeBefore := requestedAt.Add(p.Validity).Truncate(time.Microsecond)

	meta := make(map[string]string, len(p.Meta)+1)
	for k, v := range p.Meta {
		meta[k] = v
	}
	if _, ok := meta[ReasonMetaKey]; !ok || p.Reason != "" {
		meta[ReasonMetaKey] = p.Reason
	}

	cids := make([]string, len(p.HoldingCIDs))
	copy(cids, p.HoldingCIDs)

	expectedAdmin := p.ExpectedAdmin
	if expectedAdmin == "" {
		expectedAdmin = p.Instrument.Admin
	}

	return TransferRequest{
		ChoiceArguments: ChoiceArguments{
			ExpectedAdmin: expectedAdmin,
			Transfer: Transfer{
				Sender:           p.Sender,
				Receiver:         p.Receiver,
				Amount:           amount,
				InstrumentID:     p.Instrument,
				RequestedAt:      requestedAt.Format(timestampLayout),
				ExecuteBefore:    executeBefore.Format(timestampLayout),
				InputHoldingCIDs: cids,
				Meta:             Metadata{Values: meta},
			},
			ExtraArgs: ExtraArgs{
				Context: ChoiceContextValues{Values: map[string]value.Value{}},
				Meta:    Metadata{Values: map[string]string{}},
			},
		},
		ExcludeDebugFields: !p.IncludeDebugFields,
	}, nil
}

// NormalizeAmount parses a decimal amount and returns its canonical string.
func NormalizeAmount(s string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.String(), nil
}

// Window parses the request's validity window.
func (r TransferRequest) Window() (requestedAt, executeBefore time.Time, err error) {
	requestedAt, err = time.Parse(timestampLayout, r.ChoiceArguments.Transfer.RequestedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse requestedAt: %w", err)
	}
	executeBefore, err = time.Parse(timestampLayout, r.ChoiceArguments.Transfer.ExecuteBefore)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse executeBefore: %w", err)
	}
	return requestedAt, executeBefore, nil
}
