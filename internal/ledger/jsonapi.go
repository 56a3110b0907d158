package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	ledgerpb "github.com/example/token-transfer/api/gen/ledger"
	"github.com/example/token-transfer/internal/failure"
)

const (
	ledgerEndPath       = "/v2/state/ledger-end"
	activeContractsPath = "/v2/state/active-contracts"

	jsActiveContractEntry = "JsActiveContract"
)

// JSONQuerier talks to the HTTP JSON Ledger API (v2).
type JSONQuerier struct {
	host   string
	client *http.Client
}

// NewJSONQuerier creates a querier for the ledger at host. A nil client uses
// http.DefaultClient.
func NewJSONQuerier(host string, client *http.Client) *JSONQuerier {
	if client == nil {
		client = http.DefaultClient
	}
	return &JSONQuerier{
		host:   strings.TrimRight(host, "/"),
		client: client,
	}
}

type ledgerEndResponse struct {
	Offset *Offset `json:"offset"`
}

func (q *JSONQuerier) LedgerEnd(ctx context.Context, accessToken string) (Offset, error) {
	const op = "ledger end"

	body, err := q.do(ctx, op, http.MethodGet, ledgerEndPath, accessToken, nil)
	if err != nil {
		return "", err
	}

	var resp ledgerEndResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &failure.ProtocolError{Op: op, Err: err}
	}
	if resp.Offset == nil {
		return "", &failure.ProtocolError{Op: op, Err: errors.New("response has no offset")}
	}
	return *resp.Offset, nil
}

type jsActiveContractsRequest struct {
	Filter         jsTransactionFilter `json:"filter"`
	Verbose        bool                `json:"verbose"`
	ActiveAtOffset int64               `json:"activeAtOffset"`
}

type jsTransactionFilter struct {
	FiltersByParty map[string]jsFilters `json:"filtersByParty"`
}

type jsFilters struct {
	Cumulative []jsCumulativeFilter `json:"cumulative"`
}

type jsCumulativeFilter struct {
	IdentifierFilter jsIdentifierFilter `json:"identifierFilter"`
}

type jsIdentifierFilter struct {
	InterfaceFilter *jsFilterValue `json:"InterfaceFilter,omitempty"`
	TemplateFilter  *jsFilterValue `json:"TemplateFilter,omitempty"`
	WildcardFilter  *jsFilterValue `json:"WildcardFilter,omitempty"`
}

type jsFilterValue struct {
	Value any `json:"value"`
}

type jsActiveContractsItem struct {
	WorkflowID    string                     `json:"workflowId"`
	ContractEntry map[string]json.RawMessage `json:"contractEntry"`
}

func (q *JSONQuerier) ActiveContracts(ctx context.Context, query ActiveContractsQuery) ([]ActiveContract, error) {
	const op = "active contracts"

	offset, err := query.Offset.Int64()
	if err != nil {
		return nil, &failure.ProtocolError{Op: op, Err: err}
	}
	identifier, err := jsIdentifierFor(query.Filter)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(jsActiveContractsRequest{
		Filter: jsTransactionFilter{
			FiltersByParty: map[string]jsFilters{
				query.Party: {Cumulative: []jsCumulativeFilter{{IdentifierFilter: identifier}}},
			},
		},
		ActiveAtOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	body, err := q.do(ctx, op, http.MethodPost, activeContractsPath, query.AccessToken, payload)
	if err != nil {
		return nil, err
	}

	var items []jsActiveContractsItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &failure.ProtocolError{Op: op, Err: err}
	}

	contracts := make([]ActiveContract, 0, len(items))
	for i, item := range items {
		raw, ok := item.ContractEntry[jsActiveContractEntry]
		if !ok {
			// JsEmpty and incomplete (un)assignments carry no active contract.
			continue
		}
		var pb ledgerpb.ActiveContract
		if err := json.Unmarshal(raw, &pb); err != nil {
			return nil, &failure.ProtocolError{Op: op, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		c, err := fromProto(&pb)
		if err != nil {
			return nil, &failure.ProtocolError{Op: op, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func jsIdentifierFor(f Filter) (jsIdentifierFilter, error) {
	switch f := f.(type) {
	case InterfaceFilter:
		return jsIdentifierFilter{InterfaceFilter: &jsFilterValue{Value: ledgerpb.InterfaceFilter{
			InterfaceID:             f.InterfaceID,
			IncludeInterfaceView:    f.IncludeInterfaceView,
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}}, nil
	case TemplateFilter:
		return jsIdentifierFilter{TemplateFilter: &jsFilterValue{Value: ledgerpb.TemplateFilter{
			TemplateID:              f.TemplateID,
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}}, nil
	case WildcardFilter:
		return jsIdentifierFilter{WildcardFilter: &jsFilterValue{Value: ledgerpb.WildcardFilter{
			IncludeCreatedEventBlob: f.IncludeCreatedEventBlob,
		}}}, nil
	}
	return jsIdentifierFilter{}, fmt.Errorf("%w: unsupported filter %T", failure.ErrInvalidInput, f)
}

func (q *JSONQuerier) do(ctx context.Context, op, method, path, accessToken string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.host+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &failure.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if err := statusError(op, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func statusError(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &failure.AuthError{Op: op, Err: cause}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &failure.TransportError{Op: op, Err: cause}
	}
	return &failure.ProtocolError{Op: op, Err: cause}
}

// fromProto converts a wire contract, failing on structurally broken input.
func fromProto(pb *ledgerpb.ActiveContract) (ActiveContract, error) {
	ev := pb.CreatedEvent
	if ev == nil {
		return ActiveContract{}, errors.New("missing created event")
	}
	if ev.ContractID == "" {
		return ActiveContract{}, errors.New("missing contract id")
	}

	c := ActiveContract{
		ContractID:       ev.ContractID,
		TemplateID:       ev.TemplateID,
		SynchronizerID:   pb.SynchronizerID,
		CreatedEventBlob: ev.CreatedEventBlob,
	}
	for _, iv := range ev.InterfaceViews {
		if iv == nil {
			continue
		}
		v, err := decodeView(iv.InterfaceID, iv.ViewValue)
		if err != nil {
			return ActiveContract{}, fmt.Errorf("contract %s: %w", ev.ContractID, err)
		}
		view := InterfaceView{InterfaceID: iv.InterfaceID, ViewValue: v}
		if iv.ViewStatus != nil && iv.ViewStatus.Code != 0 {
			view.ViewStatus = &ViewStatus{Code: iv.ViewStatus.Code, Message: iv.ViewStatus.Message}
		}
		c.InterfaceViews = append(c.InterfaceViews, view)
	}
	return c, nil
}
