// Package store persists the fill history outside the in-memory ledger: a
// SQLite journal appended to as fills happen and Parquet files exported from
// a snapshot. Nothing here is read back into the ledger.
package store

import (
	"context"

	"brokergw/internal/domain"
)

// FillJournal records fills as they are produced.
type FillJournal interface {
	// Name identifies the journal in logs and metrics.
	Name() string

	// PublishFill appends one fill.
	PublishFill(ctx context.Context, fill domain.Fill) error

	// ListFills returns all journaled fills in append order.
	ListFills(ctx context.Context) ([]domain.Fill, error)

	// Close releases the underlying resources.
	Close() error
}

// FillArchive exports fill snapshots to files.
type FillArchive interface {
	// ExportFills writes fills grouped by UTC trading date and returns the
	// files written.
	ExportFills(ctx context.Context, fills []domain.Fill) ([]string, error)

	// ReadFills returns the archived fills for one UTC date.
	ReadFills(ctx context.Context, date string) ([]domain.Fill, error)
}
