package brokergw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokergw/internal/api"
	"brokergw/internal/broker"
	"brokergw/internal/config"
	"brokergw/internal/gateway"
)

func newTestClient(t *testing.T) (*Client, *broker.Ledger) {
	t.Helper()
	ledger := broker.NewLedger()
	srv := api.NewServer(config.Server{Host: "127.0.0.1"}, gateway.New(ledger), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/"), ledger
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:4006"
	c := NewClient(baseURL, WithTimeout(time.Second))

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.http == nil {
		t.Fatal("expected non-nil resty client")
	}
	if got := c.http.GetClient().Timeout; got != time.Second {
		t.Errorf("expected timeout %v, got %v", time.Second, got)
	}
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	first, err := c.SubmitOrder(ctx, SubmitOrderRequest{Symbol: "AAPL", Side: "BUY", Qty: 10})
	require.NoError(t, err)
	assert.Equal(t, "FILLED", first.Status)

	price := 150.0
	_, err = c.SubmitOrder(ctx, SubmitOrderRequest{Symbol: "AAPL", Side: "SELL", Qty: 4, Price: &price, StrategyID: "mean-rev"})
	require.NoError(t, err)

	positions, err := c.GetPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Position{{Symbol: "AAPL", Qty: 6}}, positions)

	fills, err := c.GetFills(ctx)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, first.ClOrdID, fills[0].ClOrdID)
	assert.Equal(t, 100.0, fills[0].Price)
	assert.Equal(t, "SELL", fills[1].Side)
	assert.Equal(t, int64(4), fills[1].Qty)
	assert.Equal(t, "SIM", fills[1].Venue)

	status, err := c.Cancel(ctx, first.ClOrdID)
	require.NoError(t, err)
	assert.Equal(t, "UNSUPPORTED_IN_SIM", status)

	status, err = c.Replace(ctx, first.ClOrdID)
	require.NoError(t, err)
	assert.Equal(t, "UNSUPPORTED_IN_SIM", status)
}

func TestClientErrors(t *testing.T) {
	c, ledger := newTestClient(t)
	ctx := context.Background()

	_, err := c.SubmitOrder(ctx, SubmitOrderRequest{Symbol: "AAPL", Side: "HOLD", Qty: 1})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err), err.Error())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "HOLD")

	err = c.Call(ctx, "broker-gateway.warp", nil, nil)
	require.Error(t, err)
	assert.True(t, IsToolNotFound(err), err.Error())
	assert.False(t, IsInvalidInput(err))

	assert.Empty(t, ledger.ListFills())
}

func TestClientNonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewClient(ts.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClientRetriesHealth(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithRetries(2, time.Millisecond))
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientDoesNotRetrySubmit(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithRetries(3, time.Millisecond))
	_, err := c.SubmitOrder(context.Background(), SubmitOrderRequest{Symbol: "AAPL", Side: "BUY", Qty: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{StatusCode: 404, Code: CodeToolNotFound, Message: `"x"`}
	assert.Equal(t, `brokergw: 404 tool_not_found: "x"`, err.Error())
	assert.Equal(t, "brokergw: 500 error", (&APIError{StatusCode: 500, Code: "error"}).Error())
}
