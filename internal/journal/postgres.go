package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transfer_journal (
	id             UUID PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	party          TEXT NOT NULL,
	receiver       TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	instrument_id  TEXT NOT NULL,
	ledger_offset  TEXT NOT NULL,
	holding_cids   TEXT[] NOT NULL,
	outcome        TEXT NOT NULL,
	error          TEXT NOT NULL,
	factory_id     TEXT NOT NULL,
	transfer_kind  TEXT NOT NULL,
	response       JSONB,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_journal_party_created ON transfer_journal (party, created_at DESC);
`

// PostgresStore keeps the journal in PostgreSQL.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect postgres: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	var response any
	if len(r.Response) > 0 {
		response = string(r.Response)
	}
	amount := r.Amount
	if amount == "" {
		amount = "0"
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO transfer_journal (id, correlation_id, party, receiver, amount, instrument_id, ledger_offset,
			holding_cids, outcome, error, factory_id, transfer_kind, response, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)`,
		r.ID, r.CorrelationID, r.Party, r.Receiver, amount, r.InstrumentID, r.Offset,
		r.HoldingCIDs, r.Outcome, r.Error, r.FactoryID, r.TransferKind, response, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id::text, correlation_id, party, receiver, amount::text, instrument_id, ledger_offset,
			holding_cids, outcome, error, factory_id, transfer_kind, COALESCE(response::text, ''), created_at
		FROM transfer_journal
		WHERE ($1 = '' OR party = $1)
		ORDER BY created_at DESC
		LIMIT $2`, opts.Party, opts.limit())
	if err != nil {
		return nil, fmt.Errorf("journal query failed: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			r        Record
			response string
		)
		err := row.Scan(&r.ID, &r.CorrelationID, &r.Party, &r.Receiver, &r.Amount, &r.InstrumentID, &r.Offset,
			&r.HoldingCIDs, &r.Outcome, &r.Error, &r.FactoryID, &r.TransferKind, &response, &r.CreatedAt)
		if response != "" {
			r.Response = []byte(response)
		}
		return r, err
	})
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}
