// Package holding picks the holdings that may fund a transfer.
package holding

import (
	"strings"

	"github.com/example/token-transfer/internal/ledger"
	"github.com/example/token-transfer/internal/value"
)

// InterfaceID is the token standard holding interface.
const InterfaceID = "#splice-api-token-holding-v1:Splice.Api.Token.HoldingV1:Holding"

// Criteria describes an eligible holding: the instrument id (compared
// case-insensitively) and an explicit null lock.
type Criteria struct {
	InstrumentID string
}

// Filter returns the ledger filter used to fetch candidate holdings.
func Filter(interfaceID string) ledger.InterfaceFilter {
	if interfaceID == "" {
		interfaceID = InterfaceID
	}
	return ledger.InterfaceFilter{
		InterfaceID:             interfaceID,
		IncludeInterfaceView:    true,
		IncludeCreatedEventBlob: true,
	}
}

// Select keeps the contracts with at least one matching view, in input order.
// It never fails: missing or oddly shaped fields simply do not match.
func Select(contracts []ledger.ActiveContract, c Criteria) []ledger.ActiveContract {
	var out []ledger.ActiveContract
	for _, contract := range contracts {
		if c.Matches(contract) {
			out = append(out, contract)
		}
	}
	return out
}

func (c Criteria) Matches(contract ledger.ActiveContract) bool {
	for _, view := range contract.InterfaceViews {
		if c.matchesView(view.ViewValue) {
			return true
		}
	}
	return false
}

func (c Criteria) matchesView(v value.Value) bool {
	idVal, ok := v.Lookup("instrumentId", "id")
	if !ok {
		return false
	}
	id, ok := idVal.AsString()
	if !ok || strings.ToLower(id) != strings.ToLower(c.InstrumentID) {
		return false
	}

	// A lock that is absent is not proof of an unlocked holding.
	lock, ok := v.Get("lock")
	return ok && lock.IsNull()
}

// ContractIDs lists the ids of contracts in order.
func ContractIDs(contracts []ledger.ActiveContract) []string {
	ids := make([]string, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ContractID)
	}
	return ids
}
