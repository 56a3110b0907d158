package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transfer_journal (
	id             TEXT PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	party          TEXT NOT NULL,
	receiver       TEXT NOT NULL,
	amount         TEXT NOT NULL,
	instrument_id  TEXT NOT NULL,
	ledger_offset  TEXT NOT NULL,
	holding_cids   TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	error          TEXT NOT NULL,
	factory_id     TEXT NOT NULL,
	transfer_kind  TEXT NOT NULL,
	response       TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS transfer_journal_party_created ON transfer_journal (party, created_at);
`

// SQLiteStore keeps the journal in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db}, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	cids, err := json.Marshal(r.HoldingCIDs)
	if err != nil {
		return fmt.Errorf("encode holding cids: %w", err)
	}

	query := `
		INSERT INTO transfer_journal (id, correlation_id, party, receiver, amount, instrument_id, ledger_offset,
			holding_cids, outcome, error, factory_id, transfer_kind, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.CorrelationID, r.Party, r.Receiver, r.Amount, r.InstrumentID, r.Offset,
		string(cids), r.Outcome, r.Error, r.FactoryID, r.TransferKind, string(r.Response), r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal insert failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	query := `
		SELECT id, correlation_id, party, receiver, amount, instrument_id, ledger_offset,
			holding_cids, outcome, error, factory_id, transfer_kind, response, created_at
		FROM transfer_journal
		WHERE (? = '' OR party = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, opts.Party, opts.Party, opts.limit())
	if err != nil {
		return nil, fmt.Errorf("journal query failed: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			cids     string
			response string
		)
		if err := rows.Scan(&r.ID, &r.CorrelationID, &r.Party, &r.Receiver, &r.Amount, &r.InstrumentID, &r.Offset,
			&cids, &r.Outcome, &r.Error, &r.FactoryID, &r.TransferKind, &response, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal scan failed: %w", err)
		}
		if err := json.Unmarshal([]byte(cids), &r.HoldingCIDs); err != nil {
			return nil, fmt.Errorf("decode holding cids: %w", err)
		}
		if response != "" {
			r.Response = json.RawMessage(response)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
