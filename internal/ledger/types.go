package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/example/token-transfer/internal/value"
)

// Querier is the read side of the ledger used by the transfer workflow.
// Implementations must be safe for concurrent use.
type Querier interface {
	// LedgerEnd returns the current read offset visible to the token holder.
	LedgerEnd(ctx context.Context, accessToken string) (Offset, error)
	// ActiveContracts returns every contract matching the query, fully
	// materialised. A single malformed contract fails the whole call.
	ActiveContracts(ctx context.Context, q ActiveContractsQuery) ([]ActiveContract, error)
}

// Offset is an opaque position in a party's ledger stream.
type Offset string

// OffsetFromInt formats a wire offset.
func OffsetFromInt(v int64) Offset {
	return Offset(strconv.FormatInt(v, 10))
}

// Int64 parses the offset for wire forms that carry it as an integer.
func (o Offset) Int64() (int64, error) {
	v, err := strconv.ParseInt(string(o), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("offset %q is not numeric", string(o))
	}
	return v, nil
}

// UnmarshalJSON accepts both numeric and string offsets.
func (o *Offset) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = Offset(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("offset: %w", err)
	}
	*o = Offset(n.String())
	return nil
}

// ActiveContractsQuery selects the contracts returned by ActiveContracts.
type ActiveContractsQuery struct {
	Party       string
	AccessToken string
	Offset      Offset
	Filter      Filter
}

// Filter is one of InterfaceFilter, TemplateFilter or WildcardFilter.
type Filter interface {
	isFilter()
}

type InterfaceFilter struct {
	InterfaceID             string
	IncludeInterfaceView    bool
	IncludeCreatedEventBlob bool
}

func (InterfaceFilter) isFilter() {}

type TemplateFilter struct {
	TemplateID              string
	IncludeCreatedEventBlob bool
}

func (TemplateFilter) isFilter() {}

type WildcardFilter struct {
	IncludeCreatedEventBlob bool
}

func (WildcardFilter) isFilter() {}

// ActiveContract is a decoded contract currently in force on the ledger.
type ActiveContract struct {
	ContractID       string
	TemplateID       string
	SynchronizerID   string
	CreatedEventBlob []byte
	InterfaceViews   []InterfaceView
}

// HasCreatedEventBlob reports whether the raw creation payload was fetched.
func (c ActiveContract) HasCreatedEventBlob() bool {
	return len(c.CreatedEventBlob) > 0
}

// InterfaceView is the projection of a contract through one interface.
type InterfaceView struct {
	InterfaceID string
	ViewValue   value.Value
	ViewStatus  *ViewStatus
}

// ViewStatus is set when the ledger failed to compute a view.
type ViewStatus struct {
	Code    int32
	Message string
}

// decodeView turns a raw view value into a Value. An empty payload is an
// absent value; anything else that is not JSON is a protocol error.
func decodeView(interfaceID string, raw json.RawMessage) (value.Value, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return value.Value{}, nil
	}
	v, err := value.Parse(raw)
	if err != nil {
		return value.Value{}, fmt.Errorf("view %s: %w", interfaceID, err)
	}
	return v, nil
}
