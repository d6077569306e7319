// Package domain holds the value types shared by the ledger, the gateway and
// the transports: sides, positions and fills.
package domain

import (
	"strings"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide maps a case-insensitive side string to a Side. The second return
// value is false for anything other than "buy" or "sell".
func ParseSide(s string) (Side, bool) {
	switch {
	case strings.EqualFold(s, string(SideBuy)):
		return SideBuy, true
	case strings.EqualFold(s, string(SideSell)):
		return SideSell, true
	default:
		return "", false
	}
}

// Sign returns +1 for buys and -1 for every other side.
func (s Side) Sign() int64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// OrderStatus is the terminal status reported for a call.
type OrderStatus string

const (
	OrderStatusFilled           OrderStatus = "FILLED"
	OrderStatusUnsupportedInSim OrderStatus = "UNSUPPORTED_IN_SIM"
)

// VenueSim tags every simulated execution.
const VenueSim = "SIM"

// Position is the net signed quantity held in one symbol.
type Position struct {
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
}

// Fill records one simulated execution. Qty is the quantity as submitted and
// is never negative for sells; the direction lives in Side.
type Fill struct {
	Timestamp time.Time `json:"ts"`
	ClOrdID   string    `json:"cl_ord_id"`
	ExecID    string    `json:"exec_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Qty       int64     `json:"qty"`
	Venue     string    `json:"venue"`
}

// SignedQty returns the position delta this fill applied.
func (f Fill) SignedQty() int64 {
	return f.Side.Sign() * f.Qty
}
