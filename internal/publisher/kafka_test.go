package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brokergw/internal/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testFill() domain.Fill {
	return domain.Fill{
		Timestamp: time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC),
		ClOrdID:   "clo_aaaaaaaa",
		ExecID:    "exe_bbbbbbbb",
		Symbol:    "AAPL",
		Side:      domain.SideSell,
		Price:     150,
		Qty:       4,
		Venue:     domain.VenueSim,
	}
}

func TestPublishFill(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisherWithWriter(w, "broker-gateway.fills", zap.NewNop())

	fill := testFill()
	require.NoError(t, p.PublishFill(context.Background(), fill))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "AAPL", string(msg.Key))
	assert.Equal(t, fill.Timestamp, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "exec_id", msg.Headers[0].Key)
	assert.Equal(t, "exe_bbbbbbbb", string(msg.Headers[0].Value))

	var event FillEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "fill", event.Type)
	assert.Equal(t, fill, event.Fill)
}

func TestPublishFillWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newKafkaPublisherWithWriter(w, "fills", zap.NewNop())

	err := p.PublishFill(context.Background(), testFill())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exe_bbbbbbbb")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaPublisherClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisherWithWriter(w, "fills", zap.NewNop())

	assert.Equal(t, "kafka", p.Name())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisherConfiguresWriter(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "fills", nil)

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "fills", w.Topic)
	assert.True(t, w.Async)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)

	// Completion must tolerate both outcomes without a live broker.
	p.completion(nil, nil)
	p.completion([]kafka.Message{{}}, errors.New("timeout"))
}
