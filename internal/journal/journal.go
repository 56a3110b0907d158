// Package journal persists a record of every transfer attempt.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/token-transfer/internal/failure"
	"github.com/example/token-transfer/internal/workflow"
)

const defaultListLimit = 50

// Record is one transfer attempt.
type Record struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Party         string          `json:"party"`
	Receiver      string          `json:"receiver"`
	Amount        string          `json:"amount"`
	InstrumentID  string          `json:"instrument_id"`
	Offset        string          `json:"offset,omitempty"`
	HoldingCIDs   []string        `json:"holding_cids"`
	Outcome       string          `json:"outcome"`
	Error         string          `json:"error,omitempty"`
	FactoryID     string          `json:"factory_id,omitempty"`
	TransferKind  string          `json:"transfer_kind,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ListOptions struct {
	Party string
	Limit int
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}

// Store saves and lists records, newest first.
type Store interface {
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Close() error
}

// FromRun builds the record for a finished workflow run. res may be nil when
// the run was rejected before starting.
func FromRun(in workflow.Input, res *workflow.Result, err error) Record {
	r := Record{
		ID:           uuid.NewString(),
		Party:        in.Party,
		Receiver:     in.Receiver,
		Amount:       in.Amount,
		InstrumentID: in.Instrument.ID,
		HoldingCIDs:  []string{},
		Outcome:      "submitted",
		CreatedAt:    time.Now().UTC(),
	}
	if res != nil {
		r.CorrelationID = res.CorrelationID
		r.Offset = string(res.Offset)
		if res.HoldingCIDs != nil {
			r.HoldingCIDs = res.HoldingCIDs
		}
		if res.Request.ChoiceArguments.Transfer.Amount != "" {
			r.Amount = res.Request.ChoiceArguments.Transfer.Amount
		}
		if res.Response != nil {
			r.FactoryID = res.Response.FactoryID
			r.TransferKind = res.Response.TransferKind
			r.Response = res.Response.Raw
		}
	}
	if err != nil {
		r.Outcome = failure.KindOf(err)
		r.Error = err.Error()
	}
	return r
}

// Open picks a store by DSN scheme: postgres:// and postgresql:// use
// PostgreSQL, sqlite:// (or a bare path) uses SQLite. The schema is created
// if missing.
func Open(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New("journal: empty dsn")
	}

	var (
		store interface {
			Store
			Migrate(context.Context) error
		}
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		store, err = OpenPostgres(ctx, dsn)
	default:
		store, err = OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return store, nil
}
