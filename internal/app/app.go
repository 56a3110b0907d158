// Package app wires configuration into a ready workflow runner for the CLI
// and the daemon.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/token-transfer/internal/auth"
	"github.com/example/token-transfer/internal/config"
	"github.com/example/token-transfer/internal/journal"
	"github.com/example/token-transfer/internal/ledger"
	"github.com/example/token-transfer/internal/metrics"
	"github.com/example/token-transfer/internal/registry"
	"github.com/example/token-transfer/internal/security"
	"github.com/example/token-transfer/internal/workflow"
	"github.com/example/token-transfer/pkg/audit"
)

type App struct {
	Runner      *workflow.Runner
	Journal     journal.Store
	Auditor     *audit.ChainLogger
	TokenSource auth.TokenSource
	Defaults    workflow.Input

	closers []func() error
}

// New builds the runner and its collaborators. reg may be nil to skip
// metrics.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	querier, err := a.querier(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	var observer workflow.Observer
	if reg != nil {
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		observer = collector
	}

	var sink *os.File
	if cfg.AuditLog != "" {
		sink, err = os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		a.Auditor = audit.NewChainLogger(sink)
	} else {
		a.Auditor = audit.NewChainLogger(nil)
	}

	if cfg.JournalDSN != "" {
		a.Journal, err = journal.Open(ctx, cfg.JournalDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Journal.Close)
	}

	a.Runner, err = workflow.New(workflow.Deps{
		Ledger:   querier,
		Registry: registry.NewClient(httpClient, logger),
		Builder:  registry.NewBuilder(),
		Logger:   logger,
		Observer: observer,
		Auditor:  a.Auditor,
	})
	if err != nil {
		return nil, err
	}

	a.TokenSource = cfg.TokenSource(httpClient)
	a.Defaults = Defaults(cfg)
	ok = true
	return a, nil
}

func (a *App) querier(cfg *config.Config, httpClient *http.Client) (ledger.Querier, error) {
	if cfg.LedgerTransport != config.TransportGRPC {
		return ledger.NewJSONQuerier(cfg.LedgerHost, httpClient), nil
	}

	var tlsCfg *tls.Config
	if cfg.LedgerTLS.Enabled() {
		c, err := security.LoadClientTLSConfig(cfg.LedgerTLS)
		if err != nil {
			return nil, fmt.Errorf("ledger tls: %w", err)
		}
		tlsCfg = c
	}
	conn, err := ledger.Dial(cfg.LedgerGRPCTarget, tlsCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	return ledger.NewGRPCQuerier(conn), nil
}

// Defaults is the workflow input implied by configuration alone.
func Defaults(cfg *config.Config) workflow.Input {
	return workflow.Input{
		Party:                cfg.PartyID,
		Instrument:           registry.InstrumentID{Admin: cfg.Admin(), ID: cfg.InstrumentID},
		InterfaceID:          cfg.HoldingInterface,
		Validity:             cfg.Validity,
		Reason:               cfg.Reason,
		RegistryURL:          cfg.RegistryURL,
		DecentralizedPartyID: cfg.DecentralizedPartyID,
	}
}

// Record saves a run to the journal when one is configured. The save is not
// cut short by cancellation of ctx.
func (a *App) Record(ctx context.Context, in workflow.Input, res *workflow.Result, runErr error) (string, error) {
	if a.Journal == nil {
		return "", nil
	}
	rec := journal.FromRun(in, res, runErr)
	if err := a.Journal.Save(context.WithoutCancel(ctx), rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
