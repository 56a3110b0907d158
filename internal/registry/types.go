// Package registry builds transfer requests and submits them to a token
// standard registry's transfer factory endpoint.
package registry

import (
	"encoding/json"

	"github.com/example/token-transfer/internal/value"
)

// ReasonMetaKey is the metadata key carrying a free-form transfer reason.
const ReasonMetaKey = "splice.lfdecentralizedtrust.org/reason"

// TransferRequest is the body POSTed to the transfer factory endpoint.
type TransferRequest struct {
	ChoiceArguments    ChoiceArguments `json:"choiceArguments"`
	ExcludeDebugFields bool            `json:"excludeDebugFields"`
}

type ChoiceArguments struct {
	ExpectedAdmin string    `json:"expectedAdmin"`
	Transfer      Transfer  `json:"transfer"`
	ExtraArgs     ExtraArgs `json:"extraArgs"`
}

type Transfer struct {
	Sender           string       `json:"sender"`
	Receiver         string       `json:"receiver"`
	Amount           string       `json:"amount"`
	InstrumentID     InstrumentID `json:"instrumentId"`
	RequestedAt      string       `json:"requestedAt"`
	ExecuteBefore    string       `json:"executeBefore"`
	InputHoldingCIDs []string     `json:"inputHoldingCids"`
	Meta             Metadata     `json:"meta"`
}

type InstrumentID struct {
	Admin string `json:"admin"`
	ID    string `json:"id"`
}

type ExtraArgs struct {
	Context ChoiceContextValues `json:"context"`
	Meta    Metadata            `json:"meta"`
}

// Metadata is a string map serialised as {"values": {...}}. A nil map is
// written as an empty object.
type Metadata struct {
	Values map[string]string `json:"values"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	values := m.Values
	if values == nil {
		values = map[string]string{}
	}
	return json.Marshal(struct {
		Values map[string]string `json:"values"`
	}{values})
}

// ChoiceContextValues carries extra choice context entries.
type ChoiceContextValues struct {
	Values map[string]value.Value `json:"values"`
}

func (c ChoiceContextValues) MarshalJSON() ([]byte, error) {
	values := c.Values
	if values == nil {
		values = map[string]value.Value{}
	}
	return json.Marshal(struct {
		Values map[string]value.Value `json:"values"`
	}{values})
}

// TransferFactoryResponse is the registry's answer. Raw holds the body as
// received.
type TransferFactoryResponse struct {
	FactoryID     string        `json:"factoryId"`
	TransferKind  string        `json:"transferKind"`
	ChoiceContext ChoiceContext `json:"choiceContext"`

	Raw json.RawMessage `json:"-"`
}

type ChoiceContext struct {
	ChoiceContextData  value.Value         `json:"choiceContextData"`
	DisclosedContracts []DisclosedContract `json:"disclosedContracts"`
}

type DisclosedContract struct {
	TemplateID       string          `json:"templateId"`
	ContractID       string          `json:"contractId"`
	CreatedEventBlob string          `json:"createdEventBlob"`
	SynchronizerID   string          `json:"synchronizerId"`
	DebugPackageName string          `json:"debugPackageName,omitempty"`
	DebugPayload     json.RawMessage `json:"debugPayload,omitempty"`
	DebugCreatedAt   string          `json:"debugCreatedAt,omitempty"`
}
