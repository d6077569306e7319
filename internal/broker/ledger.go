package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"brokergw/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*Ledger)(nil)

// ErrEmptySymbol is returned by RecordFill when the symbol is blank.
var ErrEmptySymbol = errors.New("symbol must not be empty")

// Ledger implements the Broker interface for simulation. It tracks net
// positions and the fill history in memory, fills every order immediately and
// never talks to an external venue.
//
// All operations take the same mutex for their full duration, so a reader
// never sees a position that has moved without its fill, or the reverse.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]int64
	fills     []domain.Fill

	venue     string
	now       func() time.Time
	newExecID func() string
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithVenue overrides the venue tag stamped on fills.
func WithVenue(venue string) LedgerOption {
	return func(l *Ledger) {
		if venue != "" {
			l.venue = venue
		}
	}
}

// WithClock overrides the time source used for fill timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithExecIDGenerator overrides how execution ids are produced.
func WithExecIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) { l.newExecID = gen }
}

// NewLedger creates an empty Ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		positions: make(map[string]int64),
		venue:     domain.VenueSim,
		now:       time.Now,
		newExecID: NewExecID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns "simulator".
func (l *Ledger) Name() string {
	return "simulator"
}

// RecordFill applies +qty for buys and -qty otherwise to the symbol's
// position and appends a fill carrying the unsigned qty.
func (l *Ledger) RecordFill(clOrdID, symbol string, side domain.Side, qty int64, price float64) (domain.Fill, error) {
	if symbol == "" {
		return domain.Fill{}, ErrEmptySymbol
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fill := domain.Fill{
		Timestamp: l.now().UTC(),
		ClOrdID:   clOrdID,
		ExecID:    l.newExecID(),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Qty:       qty,
		Venue:     l.venue,
	}

	l.positions[symbol] += side.Sign() * qty
	l.fills = append(l.fills, fill)

	return fill, nil
}

// ListPositions returns every symbol ever traded, sorted by symbol.
func (l *Ledger) ListPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make([]domain.Position, 0, len(l.positions))
	for sym, qty := range l.positions {
		positions = append(positions, domain.Position{Symbol: sym, Qty: qty})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

// ListFills returns a copy of the fill history in insertion order.
func (l *Ledger) ListFills() []domain.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()

	fills := make([]domain.Fill, len(l.fills))
	copy(fills, l.fills)
	return fills
}
