// Package broker defines the Broker interface the gateway dispatches into and
// provides the in-memory simulated ledger that implements it.
package broker

import (
	"brokergw/internal/domain"
)

// Broker abstracts the execution venue behind the gateway: something that can
// turn an accepted order into a fill and report positions and fill history.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// RecordFill executes an order immediately, applies its signed delta to
	// the symbol's position and appends the resulting fill.
	RecordFill(clOrdID, symbol string, side domain.Side, qty int64, price float64) (domain.Fill, error)

	// ListPositions returns a snapshot of every symbol that has been traded.
	ListPositions() []domain.Position

	// ListFills returns the fill history in insertion order.
	ListFills() []domain.Fill
}
