// Package workflow runs the transfer pipeline: resolve the ledger offset,
// fetch active holdings, select the eligible ones, build the transfer request
// and submit it to the registry.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/holding"
	"github.com/example/token-transfer/internal/ledger"
	"github.com/example/token-transfer/internal/registry"
	"github.com/example/token-transfer/internal/security"
	"github.com/example/token-transfer/pkg/audit"
)

// Step names reported to the Observer.
const (
	StepResolveOffset  = "resolve_offset"
	StepFetchContracts = "fetch_contracts"
	StepSelectHoldings = "select_holdings"
	StepBuildRequest   = "build_request"
	StepSubmit         = "submit"
)

var ErrNoEligibleHoldings = failure.ErrNoEligibleHoldings

// Submitter sends a transfer request to the registry.
type Submitter interface {
	TransferFactory(ctx context.Context, p registry.SubmitParams) (*registry.TransferFactoryResponse, error)
}

// Observer receives step and run timings.
type Observer interface {
	ObserveStep(step string, d time.Duration, err error)
	ObserveRun(d time.Duration, selected int, err error)
}

// Auditor records submissions. *audit.ChainLogger satisfies it.
type Auditor interface {
	Append(e audit.Event) (*audit.LogEntry, error)
}

type Deps struct {
	Ledger   ledger.Querier
	Registry Submitter
	Builder  *registry.Builder
	Logger   *slog.Logger
	Observer Observer
	Auditor  Auditor
}

// Runner executes transfers. It keeps no per-run state, so one Runner may
// serve concurrent runs.
type Runner struct {
	ledger   ledger.Querier
	registry Submitter
	builder  *registry.Builder
	logger   *slog.Logger
	observer Observer
	auditor  Auditor
}

func New(deps Deps) (*Runner, error) {
	if deps.Ledger == nil {
		return nil, errors.New("workflow: ledger querier is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("workflow: registry submitter is required")
	}
	if deps.Builder == nil {
		deps.Builder = registry.NewBuilder()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	return &Runner{
		ledger:   deps.Ledger,
		registry: deps.Registry,
		builder:  deps.Builder,
		logger:   deps.Logger,
		observer: deps.Observer,
		auditor:  deps.Auditor,
	}, nil
}

// Input is everything one run needs. Defaults are applied by configuration,
// not here, except for the holding interface id.
type Input struct {
	Party       string
	AccessToken string

	Receiver      string
	Amount        string
	Instrument    registry.InstrumentID
	ExpectedAdmin string
	InterfaceID   string
	Validity      time.Duration
	Reason        string
	Meta          map[string]string

	RegistryURL          string
	DecentralizedPartyID string
	RegistryAccessToken  string
	IncludeDebugFields   bool
}

type Result struct {
	CorrelationID string
	Offset        ledger.Offset
	Fetched       int
	HoldingCIDs   []string
	Request       registry.TransferRequest
	Response      *registry.TransferFactoryResponse
}

// Run executes the pipeline once and stops at the first failing step. The
// returned Result is populated up to that step even when err is non-nil.
func (r *Runner) Run(ctx context.Context, in Input) (res *Result, err error) {
	if in.Party == "" {
		return nil, fmt.Errorf("%w: party is required", failure.ErrInvalidInput)
	}

	ctx, cid := security.EnsureCorrelationID(ctx)
	log := r.logger.With("cid", cid, "party", in.Party)
	res = &Result{CorrelationID: cid}

	start := time.Now()
	defer func() {
		r.observer.ObserveRun(time.Since(start), len(res.HoldingCIDs), err)
		if err != nil {
			log.WarnContext(ctx, "transfer failed", "kind", failure.KindOf(err), "error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return
		}
		var factoryID string
		if res.Response != nil {
			factoryID = res.Response.FactoryID
		}
		log.InfoContext(ctx, "transfer submitted", "factory_id", factoryID,
			"holdings", len(res.HoldingCIDs), "duration_ms", time.Since(start).Milliseconds())
	}()

	err = r.step(StepResolveOffset, func() error {
		var err error
		res.Offset, err = r.ledger.LedgerEnd(ctx, in.AccessToken)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("resolve offset: %w", err)
	}
	log.DebugContext(ctx, "resolved ledger offset", "offset", string(res.Offset))

	var contracts []ledger.ActiveContract
	err = r.step(StepFetchContracts, func() error {
		var err error
		contracts, err = r.ledger.ActiveContracts(ctx, ledger.ActiveContractsQuery{
			Party:       in.Party,
			AccessToken: in.AccessToken,
			Offset:      res.Offset,
			Filter:      holding.Filter(in.InterfaceID),
		})
		return err
	})
	if err != nil {
		return res, fmt.Errorf("fetch active contracts: %w", err)
	}
	res.Fetched = len(contracts)

	err = r.step(StepSelectHoldings, func() error {
		selected := holding.Select(contracts, holding.Criteria{InstrumentID: in.Instrument.ID})
		res.HoldingCIDs = holding.ContractIDs(selected)
		if len(selected) == 0 {
			return fmt.Errorf("%w: %d contracts fetched, none hold unlocked %s", ErrNoEligibleHoldings, len(contracts), in.Instrument.ID)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	log.DebugContext(ctx, "selected holdings", "fetched", len(contracts), "holdings", len(res.HoldingCIDs))

	err = r.step(StepBuildRequest, func() error {
		var err error
		res.Request, err = r.builder.Build(registry.BuildParams{
			Sender:             in.Party,
			Receiver:           in.Receiver,
			Amount:             in.Amount,
			Instrument:         in.Instrument,
			ExpectedAdmin:      in.ExpectedAdmin,
			Validity:           in.Validity,
			HoldingCIDs:        res.HoldingCIDs,
			Meta:               in.Meta,
			Reason:             in.Reason,
			IncludeDebugFields: in.IncludeDebugFields,
		})
		return err
	})
	if err != nil {
		return res, fmt.Errorf("build transfer request: %w", err)
	}

	err = r.step(StepSubmit, func() error {
		var err error
		res.Response, err = r.registry.TransferFactory(ctx, registry.SubmitParams{
			RegistryURL:          in.RegistryURL,
			DecentralizedPartyID: in.DecentralizedPartyID,
			AccessToken:          in.RegistryAccessToken,
			Request:              res.Request,
		})
		if err == nil && res.Response == nil {
			err = &failure.ResponseDecodeError{Err: errors.New("registry returned no response")}
		}
		return err
	})
	r.audit(ctx, log, in, res, err)
	if err != nil {
		return res, fmt.Errorf("submit transfer: %w", err)
	}
	return res, nil
}

func (r *Runner) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.observer.ObserveStep(name, time.Since(start), err)
	return err
}

// audit records the submission attempt. A failing auditor is logged and does
// not change the outcome of a transfer that already reached the registry.
func (r *Runner) audit(ctx context.Context, log *slog.Logger, in Input, res *Result, submitErr error) {
	if r.auditor == nil {
		return
	}

	ev := audit.Event{
		Action:        "transfer_factory",
		Party:         in.Party,
		Receiver:      in.Receiver,
		Amount:        res.Request.ChoiceArguments.Transfer.Amount,
		Instrument:    in.Instrument.ID,
		HoldingCIDs:   res.HoldingCIDs,
		Outcome:       "submitted",
		CorrelationID: res.CorrelationID,
	}
	if submitErr != nil {
		ev.Outcome = failure.KindOf(submitErr)
	} else if res.Response != nil {
		ev.FactoryID = res.Response.FactoryID
	}

	if _, err := r.auditor.Append(ev); err != nil {
		log.ErrorContext(ctx, "audit append failed", "error", err)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveStep(string, time.Duration, error) {}
func (nopObserver) ObserveRun(time.Duration, int, error)     {}
