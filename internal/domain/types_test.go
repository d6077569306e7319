package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in     string
		want   Side
		wantOK bool
	}{
		{"BUY", SideBuy, true},
		{"buy", SideBuy, true},
		{"Buy", SideBuy, true},
		{"SELL", SideSell, true},
		{"sell", SideSell, true},
		{"short", "", false},
		{"", "", false},
		{" BUY", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSide(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseSide(%q) ok", tt.in)
		assert.Equal(t, tt.want, got, "ParseSide(%q)", tt.in)
	}
}

func TestSideSign(t *testing.T) {
	assert.Equal(t, int64(1), SideBuy.Sign())
	assert.Equal(t, int64(-1), SideSell.Sign())
}

func TestFillSignedQtyKeepsQtyUnsigned(t *testing.T) {
	f := Fill{Side: SideSell, Qty: 4}
	assert.Equal(t, int64(4), f.Qty)
	assert.Equal(t, int64(-4), f.SignedQty())
}

func TestFillJSON(t *testing.T) {
	f := Fill{
		Timestamp: time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC),
		ClOrdID:   "clo_abcdEFGH",
		ExecID:    "exe_12345678",
		Symbol:    "AAPL",
		Side:      SideBuy,
		Price:     100,
		Qty:       10,
		Venue:     VenueSim,
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "2024-06-15T13:30:00Z", m["ts"])
	assert.Equal(t, "clo_abcdEFGH", m["cl_ord_id"])
	assert.Equal(t, "exe_12345678", m["exec_id"])
	assert.Equal(t, "AAPL", m["symbol"])
	assert.Equal(t, "BUY", m["side"])
	assert.Equal(t, 100.0, m["price"])
	assert.Equal(t, 10.0, m["qty"])
	assert.Equal(t, "SIM", m["venue"])
}
