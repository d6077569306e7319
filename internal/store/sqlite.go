package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"brokergw/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ FillJournal = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	exec_id   TEXT    NOT NULL UNIQUE,
	cl_ord_id TEXT    NOT NULL,
	symbol    TEXT    NOT NULL,
	side      TEXT    NOT NULL,
	price     REAL    NOT NULL,
	qty       INTEGER NOT NULL,
	venue     TEXT    NOT NULL,
	ts_ns     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS fills_symbol ON fills (symbol);
`

// SQLiteStore journals fills into a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// fills table if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating sqlite directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbPath)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrating fills table")
	}
	return &SQLiteStore{db: db}, nil
}

// Name implements FillJournal.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// FillJournal implementation
// ---------------------------------------------------------------------------

// PublishFill inserts fill into the journal.
func (s *SQLiteStore) PublishFill(ctx context.Context, fill domain.Fill) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fills (exec_id, cl_ord_id, symbol, side, price, qty, venue, ts_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.ExecID, fill.ClOrdID, fill.Symbol, string(fill.Side),
		fill.Price, fill.Qty, fill.Venue, fill.Timestamp.UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting fill %s", fill.ExecID)
	}
	return nil
}

// ListFills returns every journaled fill in insertion order.
func (s *SQLiteStore) ListFills(ctx context.Context) ([]domain.Fill, error) {
	return s.queryFills(ctx,
		`SELECT exec_id, cl_ord_id, symbol, side, price, qty, venue, ts_ns
		 FROM fills ORDER BY seq`)
}

// ListFillsBySymbol returns the journaled fills for one symbol in insertion
// order.
func (s *SQLiteStore) ListFillsBySymbol(ctx context.Context, symbol string) ([]domain.Fill, error) {
	return s.queryFills(ctx,
		`SELECT exec_id, cl_ord_id, symbol, side, price, qty, venue, ts_ns
		 FROM fills WHERE symbol = ? ORDER BY seq`, symbol)
}

func (s *SQLiteStore) queryFills(ctx context.Context, query string, args ...any) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying fills")
	}
	defer rows.Close()

	fills := []domain.Fill{}
	for rows.Next() {
		var (
			f    domain.Fill
			side string
			tsNs int64
		)
		if err := rows.Scan(&f.ExecID, &f.ClOrdID, &f.Symbol, &side, &f.Price, &f.Qty, &f.Venue, &tsNs); err != nil {
			return nil, errors.Wrap(err, "scanning fill")
		}
		f.Side = domain.Side(side)
		f.Timestamp = time.Unix(0, tsNs).UTC()
		fills = append(fills, f)
	}
	return fills, errors.Wrap(rows.Err(), "iterating fills")
}
