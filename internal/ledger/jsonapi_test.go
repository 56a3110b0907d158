package ledger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/token-transfer/internal/failure"
)

const holdingInterface = "#splice-api-token-holding-v1:Splice.Api.Token.HoldingV1:Holding"

const activeContractsBody = `[
  {
    "workflowId": "",
    "contractEntry": {
      "JsActiveContract": {
        "createdEvent": {
          "offset": 11,
          "nodeId": 0,
          "contractId": "00aa",
          "templateId": "pkg:Splice.Amulet:Amulet",
          "createdEventBlob": "CgMyLjE=",
          "interfaceViews": [
            {
              "interfaceId": "#splice-api-token-holding-v1:Splice.Api.Token.HoldingV1:Holding",
              "viewStatus": {"code": 0, "message": ""},
              "viewValue": {"owner": "alice", "instrumentId": {"admin": "dso", "id": "CBTC"}, "amount": "1.0", "lock": null}
            }
          ]
        },
        "synchronizerId": "global-domain::1220",
        "reassignmentCounter": 0
      }
    }
  },
  {"workflowId": "", "contractEntry": {"JsEmpty": {}}},
  {
    "workflowId": "",
    "contractEntry": {
      "JsActiveContract": {
        "createdEvent": {
          "offset": 12,
          "nodeId": 1,
          "contractId": "00bb",
          "templateId": "pkg:Splice.Amulet:LockedAmulet",
          "interfaceViews": [
            {
              "interfaceId": "#splice-api-token-holding-v1:Splice.Api.Token.HoldingV1:Holding",
              "viewValue": {"instrumentId": {"admin": "dso", "id": "CBTC"}, "lock": {"holders": ["x"]}}
            }
          ]
        },
        "synchronizerId": "global-domain::1220",
        "reassignmentCounter": 0
      }
    }
  }
]`

type fakeJSONLedger struct {
	ledgerEndBody   string
	ledgerEndStatus int
	acsBody         string
	acsStatus       int

	gotAuth    string
	gotRequest map[string]any
}

func (f *fakeJSONLedger) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v2/state/ledger-end", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		writeRaw(w, f.ledgerEndStatus, f.ledgerEndBody)
	})
	r.Post("/v2/state/active-contracts", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &f.gotRequest)
		writeRaw(w, f.acsStatus, f.acsBody)
	})
	return r
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newJSONFixture(t *testing.T, f *fakeJSONLedger) *JSONQuerier {
	t.Helper()
	ts := httptest.NewServer(f.router())
	t.Cleanup(ts.Close)
	return NewJSONQuerier(ts.URL+"/", ts.Client())
}

func TestJSONLedgerEnd(t *testing.T) {
	f := &fakeJSONLedger{ledgerEndBody: `{"offset": 12}`}
	q := newJSONFixture(t, f)

	off, err := q.LedgerEnd(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, Offset("12"), off)
	assert.Equal(t, "Bearer tok", f.gotAuth)

	f.ledgerEndBody = `{"offset": "00000012"}`
	off, err = q.LedgerEnd(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, Offset("00000012"), off)

	n, err := off.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestJSONLedgerEndErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"expired"}`, func(t *testing.T, err error) {
			var target *failure.AuthError
			assert.ErrorAs(t, err, &target)
		}},
		{"forbidden", http.StatusForbidden, `{}`, func(t *testing.T, err error) {
			var target *failure.AuthError
			assert.ErrorAs(t, err, &target)
		}},
		{"unavailable", http.StatusServiceUnavailable, `down`, func(t *testing.T, err error) {
			var target *failure.TransportError
			assert.ErrorAs(t, err, &target)
		}},
		{"garbage", http.StatusOK, `not json`, func(t *testing.T, err error) {
			var target *failure.ProtocolError
			assert.ErrorAs(t, err, &target)
		}},
		{"no offset", http.StatusOK, `{}`, func(t *testing.T, err error) {
			var target *failure.ProtocolError
			assert.ErrorAs(t, err, &target)
		}},
		{"bad request", http.StatusBadRequest, `{"code":"INVALID"}`, func(t *testing.T, err error) {
			var target *failure.ProtocolError
			assert.ErrorAs(t, err, &target)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := newJSONFixture(t, &fakeJSONLedger{ledgerEndStatus: tc.status, ledgerEndBody: tc.body})
			_, err := q.LedgerEnd(context.Background(), "tok")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestJSONLedgerEndConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewJSONQuerier(url, nil).LedgerEnd(context.Background(), "tok")
	var target *failure.TransportError
	require.ErrorAs(t, err, &target)
}

func TestJSONActiveContracts(t *testing.T) {
	f := &fakeJSONLedger{acsBody: activeContractsBody}
	q := newJSONFixture(t, f)

	contracts, err := q.ActiveContracts(context.Background(), ActiveContractsQuery{
		Party:       "alice::1220",
		AccessToken: "tok",
		Offset:      "00000012",
		Filter: InterfaceFilter{
			InterfaceID:             holdingInterface,
			IncludeInterfaceView:    true,
			IncludeCreatedEventBlob: true,
		},
	})
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	assert.Equal(t, "00aa", contracts[0].ContractID)
	assert.True(t, contracts[0].HasCreatedEventBlob())
	assert.Equal(t, "global-domain::1220", contracts[0].SynchronizerID)
	require.Len(t, contracts[0].InterfaceViews, 1)
	assert.Nil(t, contracts[0].InterfaceViews[0].ViewStatus)
	id, ok := contracts[0].InterfaceViews[0].ViewValue.Lookup("instrumentId", "id")
	require.True(t, ok)
	s, _ := id.AsString()
	assert.Equal(t, "CBTC", s)

	assert.Equal(t, "00bb", contracts[1].ContractID)
	assert.False(t, contracts[1].HasCreatedEventBlob())

	assert.Equal(t, "Bearer tok", f.gotAuth)
	assert.EqualValues(t, 12, f.gotRequest["activeAtOffset"])

	filter := f.gotRequest["filter"].(map[string]any)
	byParty := filter["filtersByParty"].(map[string]any)
	cumulative := byParty["alice::1220"].(map[string]any)["cumulative"].([]any)
	require.Len(t, cumulative, 1)
	ifv := cumulative[0].(map[string]any)["identifierFilter"].(map[string]any)["InterfaceFilter"].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, holdingInterface, ifv["interfaceId"])
	assert.Equal(t, true, ifv["includeInterfaceView"])
	assert.Equal(t, true, ifv["includeCreatedEventBlob"])
}

func TestJSONActiveContractsFailsFastOnMalformedContract(t *testing.T) {
	body := `[
	  {"contractEntry": {"JsActiveContract": {"createdEvent": {"contractId": "ok", "templateId": "t"}}}},
	  {"contractEntry": {"JsActiveContract": {"createdEvent": {"templateId": "t"}}}}
	]`
	q := newJSONFixture(t, &fakeJSONLedger{acsBody: body})

	contracts, err := q.ActiveContracts(context.Background(), ActiveContractsQuery{
		Party:  "alice",
		Offset: "1",
		Filter: InterfaceFilter{InterfaceID: holdingInterface, IncludeInterfaceView: true},
	})
	assert.Nil(t, contracts)
	var target *failure.ProtocolError
	require.ErrorAs(t, err, &target)
	assert.Contains(t, err.Error(), "missing contract id")
}

func TestJSONActiveContractsRejectsNonNumericOffset(t *testing.T) {
	f := &fakeJSONLedger{acsBody: `[]`}
	q := newJSONFixture(t, f)

	_, err := q.ActiveContracts(context.Background(), ActiveContractsQuery{
		Party:  "alice",
		Offset: "not-a-number",
		Filter: WildcardFilter{},
	})
	var target *failure.ProtocolError
	require.ErrorAs(t, err, &target)
	assert.Nil(t, f.gotRequest)
}

func TestJSONActiveContractsTemplateFilter(t *testing.T) {
	f := &fakeJSONLedger{acsBody: `[]`}
	q := newJSONFixture(t, f)

	contracts, err := q.ActiveContracts(context.Background(), ActiveContractsQuery{
		Party:  "alice",
		Offset: "3",
		Filter: TemplateFilter{TemplateID: "pkg:Mod:Tpl", IncludeCreatedEventBlob: true},
	})
	require.NoError(t, err)
	assert.Empty(t, contracts)

	byParty := f.gotRequest["filter"].(map[string]any)["filtersByParty"].(map[string]any)
	ident := byParty["alice"].(map[string]any)["cumulative"].([]any)[0].(map[string]any)["identifierFilter"].(map[string]any)
	_, ok := ident["TemplateFilter"]
	assert.True(t, ok)
	_, ok = ident["InterfaceFilter"]
	assert.False(t, ok)
}
