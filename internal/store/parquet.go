package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"brokergw/internal/domain"
)

// Compile-time interface check.
var _ FillArchive = (*ParquetStore)(nil)

// ParquetStore archives fills as Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// FillRecord is the Parquet schema for fills.
type FillRecord struct {
	Timestamp int64   `parquet:"ts,timestamp(nanosecond)"` // Unix ns
	ClOrdID   string  `parquet:"cl_ord_id"`
	ExecID    string  `parquet:"exec_id"`
	Symbol    string  `parquet:"symbol"`
	Side      string  `parquet:"side"`
	Price     float64 `parquet:"price"`
	Qty       int64   `parquet:"qty"`
	Venue     string  `parquet:"venue"`
}

func toRecord(f domain.Fill) FillRecord {
	return FillRecord{
		Timestamp: f.Timestamp.UnixNano(),
		ClOrdID:   f.ClOrdID,
		ExecID:    f.ExecID,
		Symbol:    f.Symbol,
		Side:      string(f.Side),
		Price:     f.Price,
		Qty:       f.Qty,
		Venue:     f.Venue,
	}
}

func (r FillRecord) toFill() domain.Fill {
	return domain.Fill{
		Timestamp: time.Unix(0, r.Timestamp).UTC(),
		ClOrdID:   r.ClOrdID,
		ExecID:    r.ExecID,
		Symbol:    r.Symbol,
		Side:      domain.Side(r.Side),
		Price:     r.Price,
		Qty:       r.Qty,
		Venue:     r.Venue,
	}
}

// ---------------------------------------------------------------------------
// FillArchive implementation
// ---------------------------------------------------------------------------

// ExportFills writes fills to one Parquet file per UTC date at:
//
//	<DataDir>/fills/<YYYY-MM-DD>.parquet
//
// Existing files are merged by exec id, so exporting the same snapshot twice
// is harmless. An existing file that cannot be read is left untouched and
// reported as an error.
func (s *ParquetStore) ExportFills(_ context.Context, fills []domain.Fill) ([]string, error) {
	if len(fills) == 0 {
		return nil, nil
	}

	groups := make(map[string][]FillRecord)
	for _, f := range fills {
		date := f.Timestamp.UTC().Format(time.DateOnly)
		groups[date] = append(groups[date], toRecord(f))
	}

	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	paths := make([]string, 0, len(dates))
	for _, date := range dates {
		path := s.fillPath(date)

		existing, err := readParquetFile[FillRecord](path)
		if err != nil && !os.IsNotExist(errors.Cause(err)) {
			return paths, errors.Wrapf(err, "reading existing fills for %s", date)
		}
		merged := mergeFillRecords(existing, groups[date])

		if err := writeParquetFile(path, merged); err != nil {
			return paths, errors.Wrapf(err, "writing fills for %s", date)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadFills reads the fills archived for date (YYYY-MM-DD). A missing file
// yields no fills.
func (s *ParquetStore) ReadFills(_ context.Context, date string) ([]domain.Fill, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, errors.Wrapf(err, "invalid date %q", date)
	}

	records, err := readParquetFile[FillRecord](s.fillPath(date))
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return []domain.Fill{}, nil
		}
		return nil, err
	}

	fills := make([]domain.Fill, 0, len(records))
	for _, r := range records {
		fills = append(fills, r.toFill())
	}
	return fills, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// fillPath returns the filesystem path for a fill Parquet file.
// Layout: <dataDir>/fills/<YYYY-MM-DD>.parquet
func (s *ParquetStore) fillPath(date string) string {
	return filepath.Join(s.DataDir, "fills", date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return rows, nil
}

// mergeFillRecords deduplicates fill records by exec id, preferring new
// records over existing ones. Results are sorted by timestamp, ties keeping
// their original order.
func mergeFillRecords(existing, incoming []FillRecord) []FillRecord {
	index := make(map[string]int, len(existing)+len(incoming))
	merged := make([]FillRecord, 0, len(existing)+len(incoming))
	for _, batch := range [][]FillRecord{existing, incoming} {
		for _, r := range batch {
			if i, ok := index[r.ExecID]; ok {
				merged[i] = r
				continue
			}
			index[r.ExecID] = len(merged)
			merged = append(merged, r)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
