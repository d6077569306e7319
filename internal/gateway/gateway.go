// Package gateway routes generic tool calls to the broker ledger: it parses
// the {tool, input} envelope into a typed call, validates it, applies it and
// shapes the result for the transports.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"brokergw/internal/broker"
	"brokergw/internal/domain"
	"brokergw/internal/metrics"
)

// DefaultPrice is used for submissions that carry no price.
const DefaultPrice = 100.0

// SinkTimeout bounds how long sinks may take to accept one fill.
const SinkTimeout = 5 * time.Second

// SubmitOrderResult is returned for an accepted submission.
type SubmitOrderResult struct {
	ClOrdID string             `json:"cl_ord_id"`
	Status  domain.OrderStatus `json:"status"`
}

// PositionsResult is returned by get_positions.
type PositionsResult struct {
	Positions []domain.Position `json:"positions"`
}

// FillsResult is returned by get_fills.
type FillsResult struct {
	Fills []domain.Fill `json:"fills"`
}

// StatusResult is returned by tools that only report a status.
type StatusResult struct {
	Status domain.OrderStatus `json:"status"`
}

// FillSink receives every fill after it has been recorded in the ledger.
type FillSink interface {
	Name() string
	PublishFill(ctx context.Context, fill domain.Fill) error
}

// Gateway dispatches tool calls onto a broker. It holds no mutable state of
// its own and is safe for concurrent use.
type Gateway struct {
	broker       broker.Broker
	limits       *Limits
	defaultPrice float64
	sinks        []FillSink
	newClOrdID   func() string
	log          *zap.Logger
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithDefaultPrice sets the price used when a submission omits one.
func WithDefaultPrice(price float64) Option {
	return func(g *Gateway) {
		if price > 0 {
			g.defaultPrice = price
		}
	}
}

// WithLimits installs pre-trade limits.
func WithLimits(l *Limits) Option {
	return func(g *Gateway) { g.limits = l }
}

// WithFillSinks appends sinks that receive recorded fills.
func WithFillSinks(sinks ...FillSink) Option {
	return func(g *Gateway) { g.sinks = append(g.sinks, sinks...) }
}

// WithClientOrderIDGenerator overrides how client order ids are produced.
func WithClientOrderIDGenerator(gen func() string) Option {
	return func(g *Gateway) { g.newClOrdID = gen }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a Gateway dispatching onto b.
func New(b broker.Broker, opts ...Option) *Gateway {
	g := &Gateway{
		broker:       b,
		defaultPrice: DefaultPrice,
		newClOrdID:   broker.NewClientOrderID,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(zap.String("component", "gateway"), zap.String("broker", b.Name()))
	return g
}

// Handle parses and dispatches one tool call. Errors wrap ErrInvalidInput or
// ErrToolNotFound.
func (g *Gateway) Handle(ctx context.Context, tool string, input json.RawMessage) (any, error) {
	start := time.Now()

	var result any
	call, err := ParseCall(tool, input)
	if err == nil {
		result, err = g.Dispatch(ctx, call)
	}

	label := metricTool(call)
	outcome := Outcome(err)
	metrics.CallsTotal.WithLabelValues(label, outcome).Inc()
	metrics.CallDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		g.log.Warn("call rejected", zap.String("tool", tool), zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}
	g.log.Debug("call handled", zap.String("tool", tool))
	return result, nil
}

// Dispatch applies an already parsed call.
func (g *Gateway) Dispatch(ctx context.Context, call Call) (any, error) {
	switch c := call.(type) {
	case SubmitOrder:
		res, err := g.submitOrder(ctx, c)
		if err != nil {
			return nil, err
		}
		return res, nil
	case GetPositions:
		return PositionsResult{Positions: g.broker.ListPositions()}, nil
	case GetFills:
		return FillsResult{Fills: g.broker.ListFills()}, nil
	case Cancel, Replace:
		return StatusResult{Status: domain.OrderStatusUnsupportedInSim}, nil
	case Unknown:
		return nil, errors.Wrapf(ErrToolNotFound, "%q", c.Name)
	default:
		return nil, errors.Wrapf(ErrToolNotFound, "%T", call)
	}
}

func (g *Gateway) submitOrder(ctx context.Context, o SubmitOrder) (SubmitOrderResult, error) {
	if err := g.limits.CheckOrder(o); err != nil {
		return SubmitOrderResult{}, err
	}

	price := g.defaultPrice
	if o.Price != nil {
		price = *o.Price
	}

	clOrdID := g.newClOrdID()
	fill, err := g.broker.RecordFill(clOrdID, o.Symbol, o.Side, o.Qty, price)
	if err != nil {
		if errors.Is(err, broker.ErrEmptySymbol) {
			return SubmitOrderResult{}, invalidInput(o.Tool(), "%v", err)
		}
		return SubmitOrderResult{}, errors.Wrap(err, "recording fill")
	}
	metrics.FillsTotal.WithLabelValues(fill.Venue).Inc()

	g.log.Info("order filled",
		zap.String("cl_ord_id", fill.ClOrdID),
		zap.String("exec_id", fill.ExecID),
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Int64("qty", fill.Qty),
		zap.Float64("price", fill.Price),
		zap.String("strategy_id", o.StrategyID),
	)

	g.publish(ctx, fill)

	return SubmitOrderResult{ClOrdID: clOrdID, Status: domain.OrderStatusFilled}, nil
}

// publish hands the fill to every sink. The ledger already holds the fill, so
// sink failures are only logged. Sinks run detached from the caller's
// cancellation: a dropped request must not leave the journal behind the ledger.
func (g *Gateway) publish(ctx context.Context, fill domain.Fill) {
	if len(g.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SinkTimeout)
	defer cancel()

	for _, s := range g.sinks {
		if err := s.PublishFill(ctx, fill); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(s.Name()).Inc()
			g.log.Warn("publishing fill",
				zap.String("sink", s.Name()),
				zap.String("exec_id", fill.ExecID),
				zap.Error(err),
			)
		}
	}
}

// metricTool bounds label cardinality: unknown tool names share one label.
func metricTool(call Call) string {
	switch call.(type) {
	case nil:
		// Only submit_order input can fail to parse.
		return ToolSubmitOrder
	case Unknown:
		return "unknown"
	default:
		return call.Tool()
	}
}
