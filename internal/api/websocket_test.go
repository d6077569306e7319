package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokergw/internal/domain"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketStreamsFills(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/call", "application/json",
		strings.NewReader(`{"tool":"broker-gateway.submit_order","input":{"symbol":"TSLA","side":"SELL","qty":7,"price":250.5}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg FillMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "fill", msg.Type)
	assert.Equal(t, "TSLA", msg.Fill.Symbol)
	assert.Equal(t, domain.SideSell, msg.Fill.Side)
	assert.Equal(t, int64(7), msg.Fill.Qty)
	assert.Equal(t, 250.5, msg.Fill.Price)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHubStopClosesClients(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.False(t, websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived), err.Error())

	// Publishing after the hub stopped is a no-op.
	assert.NoError(t, s.hub.PublishFill(context.Background(), domain.Fill{Symbol: "AAPL"}))
}

func TestHubPublishFillBusy(t *testing.T) {
	hub := NewHub(nil)

	// Nothing drains the queue until Run starts.
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, hub.PublishFill(context.Background(), domain.Fill{Symbol: "AAPL"}))
	}
	assert.ErrorIs(t, hub.PublishFill(context.Background(), domain.Fill{Symbol: "AAPL"}), ErrHubBusy)
	assert.Equal(t, "websocket", hub.Name())
}
