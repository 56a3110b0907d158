package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/holding"
	"github.com/example/token-transfer/internal/ledger"
	"github.com/example/token-transfer/internal/registry"
	"github.com/example/token-transfer/internal/value"
	"github.com/example/token-transfer/pkg/audit"
)

type fakeLedger struct {
	offset    ledger.Offset
	endErr    error
	contracts []ledger.ActiveContract
	acsErr    error

	endCalls int
	acsCalls int
	gotQuery ledger.ActiveContractsQuery
	gotToken string
}

func (f *fakeLedger) LedgerEnd(_ context.Context, token string) (ledger.Offset, error) {
	f.endCalls++
	f.gotToken = token
	return f.offset, f.endErr
}

func (f *fakeLedger) ActiveContracts(_ context.Context, q ledger.ActiveContractsQuery) ([]ledger.ActiveContract, error) {
	f.acsCalls++
	f.gotQuery = q
	if f.acsErr != nil {
		return nil, f.acsErr
	}
	return f.contracts, nil
}

type fakeSubmitter struct {
	resp  *registry.TransferFactoryResponse
	err   error
	calls int
	got   registry.SubmitParams
}

func (f *fakeSubmitter) TransferFactory(_ context.Context, p registry.SubmitParams) (*registry.TransferFactoryResponse, error) {
	f.calls++
	f.got = p
	return f.resp, f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	steps []string
	runs  int
	last  error
}

func (o *recordingObserver) ObserveStep(step string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, step)
}

func (o *recordingObserver) ObserveRun(_ time.Duration, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.last = err
}

func holdingContract(t *testing.T, cid, view string) ledger.ActiveContract {
	t.Helper()
	v, err := value.Parse([]byte(view))
	require.NoError(t, err)
	return ledger.ActiveContract{
		ContractID:       cid,
		CreatedEventBlob: []byte{1},
		InterfaceViews:   []ledger.InterfaceView{{InterfaceID: holding.InterfaceID, ViewValue: v}},
	}
}

func scenarioLedger(t *testing.T) *fakeLedger {
	return &fakeLedger{
		offset: "00000012",
		contracts: []ledger.ActiveContract{
			holdingContract(t, "00free", `{"instrumentId":{"admin":"dso","id":"CBTC"},"lock":null}`),
			holdingContract(t, "00locked", `{"instrumentId":{"admin":"dso","id":"CBTC"},"lock":{"holder":"x"}}`),
		},
	}
}

func testInput() Input {
	return Input{
		Party:                "alice::1220",
		AccessToken:          "ledger-token",
		Receiver:             "bob::1220",
		Amount:               "0.02",
		Instrument:           registry.InstrumentID{Admin: "dso", ID: "CBTC"},
		Validity:             5 * time.Hour,
		RegistryURL:          "https://registry.example",
		DecentralizedPartyID: "dso",
	}
}

func newRunner(t *testing.T, deps Deps) *Runner {
	t.Helper()
	r, err := New(deps)
	require.NoError(t, err)
	return r
}

func TestRunSelectsUnlockedHolding(t *testing.T) {
	led := scenarioLedger(t)
	sub := &fakeSubmitter{resp: &registry.TransferFactoryResponse{FactoryID: "00ff", TransferKind: "offer"}}
	obs := &recordingObserver{}
	auditor := audit.NewChainLogger(nil)

	res, err := newRunner(t, Deps{Ledger: led, Registry: sub, Observer: obs, Auditor: auditor}).Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, ledger.Offset("00000012"), res.Offset)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, []string{"00free"}, res.HoldingCIDs)
	assert.Equal(t, "00ff", res.Response.FactoryID)
	assert.NotEmpty(t, res.CorrelationID)

	assert.Equal(t, "ledger-token", led.gotToken)
	assert.Equal(t, ledger.Offset("00000012"), led.gotQuery.Offset)
	assert.Equal(t, "alice::1220", led.gotQuery.Party)
	assert.Equal(t, holding.Filter(""), led.gotQuery.Filter)

	require.Equal(t, 1, sub.calls)
	tr := sub.got.Request.ChoiceArguments.Transfer
	assert.Equal(t, []string{"00free"}, tr.InputHoldingCIDs)
	assert.Equal(t, "alice::1220", tr.Sender)
	assert.Equal(t, "dso", sub.got.DecentralizedPartyID)

	assert.Equal(t, []string{StepResolveOffset, StepFetchContracts, StepSelectHoldings, StepBuildRequest, StepSubmit}, obs.steps)
	assert.Equal(t, 1, obs.runs)
	assert.NoError(t, obs.last)

	entries := auditor.Entries()
	require.Len(t, entries, 1)
	ev, err := entries[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "submitted", ev.Outcome)
	assert.Equal(t, "00ff", ev.FactoryID)
	assert.Equal(t, res.CorrelationID, ev.CorrelationID)
}

// registryServer answers every transfer factory call with a fixed response.
func registryServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestRunSurfacesRegistryRejection(t *testing.T) {
	ts, calls := registryServer(t, http.StatusBadRequest, `{"error":"insufficient funds"}`)
	auditor := audit.NewChainLogger(nil)
	r := newRunner(t, Deps{Ledger: scenarioLedger(t), Registry: registry.NewClient(ts.Client(), nil), Auditor: auditor})

	in := testInput()
	in.RegistryURL = ts.URL
	_, err := r.Run(context.Background(), in)

	var target *failure.RegistrySubmissionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, http.StatusBadRequest, target.StatusCode)
	assert.Equal(t, `{"error":"insufficient funds"}`, target.Body)
	assert.Equal(t, int32(1), calls.Load(), "no retry")

	ev, err := auditor.Entries()[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, failure.KindRegistrySubmission, ev.Outcome)
}

func TestRunSurfacesUndecodableResponse(t *testing.T) {
	ts, _ := registryServer(t, http.StatusOK, `this is not json`)
	r := newRunner(t, Deps{Ledger: scenarioLedger(t), Registry: registry.NewClient(ts.Client(), nil)})

	in := testInput()
	in.RegistryURL = ts.URL

	var err error
	require.NotPanics(t, func() { _, err = r.Run(context.Background(), in) })

	var target *failure.ResponseDecodeError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "this is not json", target.Body)
}

func TestRunShortCircuits(t *testing.T) {
	authErr := &failure.AuthError{Op: "ledger end", Err: errors.New("401")}

	cases := []struct {
		name      string
		ledger    *fakeLedger
		mutate    func(*Input)
		wantKind  string
		wantACS   int
		wantSteps []string
	}{
		{
			name:      "offset rejected",
			ledger:    &fakeLedger{endErr: authErr},
			wantKind:  failure.KindAuth,
			wantSteps: []string{StepResolveOffset},
		},
		{
			name:      "fetch fails",
			ledger:    &fakeLedger{offset: "1", acsErr: &failure.ProtocolError{Op: "active contracts", Err: errors.New("bad view")}},
			wantKind:  failure.KindProtocol,
			wantACS:   1,
			wantSteps: []string{StepResolveOffset, StepFetchContracts},
		},
		{
			name:      "nothing eligible",
			ledger:    &fakeLedger{offset: "1"},
			wantKind:  failure.KindNoHoldings,
			wantACS:   1,
			wantSteps: []string{StepResolveOffset, StepFetchContracts, StepSelectHoldings},
		},
		{
			name:      "invalid amount",
			ledger:    scenarioLedger(t),
			mutate:    func(in *Input) { in.Amount = "-1" },
			wantKind:  failure.KindInvalidInput,
			wantACS:   1,
			wantSteps: []string{StepResolveOffset, StepFetchContracts, StepSelectHoldings, StepBuildRequest},
		},
		{
			name:      "zero validity",
			ledger:    scenarioLedger(t),
			mutate:    func(in *Input) { in.Validity = 0 },
			wantKind:  failure.KindInvalidInput,
			wantACS:   1,
			wantSteps: []string{StepResolveOffset, StepFetchContracts, StepSelectHoldings, StepBuildRequest},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			obs := &recordingObserver{}
			in := testInput()
			if tc.mutate != nil {
				tc.mutate(&in)
			}

			_, err := newRunner(t, Deps{Ledger: tc.ledger, Registry: sub, Observer: obs}).Run(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, failure.KindOf(err))
			assert.Equal(t, tc.wantACS, tc.ledger.acsCalls)
			assert.Zero(t, sub.calls)
			assert.Equal(t, tc.wantSteps, obs.steps)
			assert.Equal(t, err, obs.last)
		})
	}
}

func TestRunRequiresParty(t *testing.T) {
	led := &fakeLedger{}
	in := testInput()
	in.Party = ""
	_, err := newRunner(t, Deps{Ledger: led, Registry: &fakeSubmitter{}}).Run(context.Background(), in)
	require.ErrorIs(t, err, failure.ErrInvalidInput)
	assert.Zero(t, led.endCalls)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Registry: &fakeSubmitter{}})
	assert.Error(t, err)
	_, err = New(Deps{Ledger: &fakeLedger{}})
	assert.Error(t, err)
}

func TestRunNilRegistryResponseIsDecodeError(t *testing.T) {
	led := scenarioLedger(t)
	sub := &fakeSubmitter{}
	obs := &recordingObserver{}
	r := newRunner(t, Deps{Ledger: led, Registry: sub, Observer: obs})

	var (
		res *Result
		err error
	)
	require.NotPanics(t, func() {
		res, err = r.Run(context.Background(), testInput())
	})
	var target *failure.ResponseDecodeError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, failure.KindResponseDecode, failure.KindOf(err))
	assert.Equal(t, 1, sub.calls)
	assert.Nil(t, res.Response)
	assert.Equal(t, 1, obs.runs)
	assert.Error(t, obs.last)
}
