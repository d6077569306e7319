package gateway

import (
	"bytes"
	"encoding/json"

	"brokergw/internal/domain"
)

// Tool names understood by the gateway. Matching is case-sensitive.
const (
	ToolSubmitOrder  = "broker-gateway.submit_order"
	ToolGetPositions = "broker-gateway.get_positions"
	ToolGetFills     = "broker-gateway.get_fills"
	ToolCancel       = "broker-gateway.cancel"
	ToolReplace      = "broker-gateway.replace"
)

// Call is a decoded tool call. The set of implementations is closed: one
// variant per known tool plus Unknown.
type Call interface {
	// Tool returns the tool name the call was parsed from.
	Tool() string

	isCall()
}

// SubmitOrder asks for an order to be filled immediately.
type SubmitOrder struct {
	Symbol string
	Side   domain.Side
	Qty    int64
	// Price is nil when the caller did not supply one.
	Price      *float64
	StrategyID string
}

// GetPositions asks for every position.
type GetPositions struct{}

// GetFills asks for the fill history.
type GetFills struct{}

// Cancel asks to cancel an order; unsupported in simulation.
type Cancel struct{}

// Replace asks to replace an order; unsupported in simulation.
type Replace struct{}

// Unknown carries a tool name the gateway does not recognise.
type Unknown struct {
	Name string
}

func (SubmitOrder) Tool() string  { return ToolSubmitOrder }
func (GetPositions) Tool() string { return ToolGetPositions }
func (GetFills) Tool() string     { return ToolGetFills }
func (Cancel) Tool() string       { return ToolCancel }
func (Replace) Tool() string      { return ToolReplace }
func (u Unknown) Tool() string    { return u.Name }

func (SubmitOrder) isCall()  {}
func (GetPositions) isCall() {}
func (GetFills) isCall()     {}
func (Cancel) isCall()       {}
func (Replace) isCall()      {}
func (Unknown) isCall()      {}

// submitOrderInput mirrors the wire payload; pointers tell absent fields
// apart from zero values.
type submitOrderInput struct {
	Symbol     *string  `json:"symbol"`
	Side       *string  `json:"side"`
	Qty        *int64   `json:"qty"`
	Price      *float64 `json:"price"`
	StrategyID *string  `json:"strategy_id"`
}

// ParseCall decodes input according to tool. Tools without an input schema
// ignore their input. Unrecognised tools parse to Unknown without error; the
// dispatcher turns them into ErrToolNotFound.
func ParseCall(tool string, input json.RawMessage) (Call, error) {
	switch tool {
	case ToolSubmitOrder:
		return parseSubmitOrder(input)
	case ToolGetPositions:
		return GetPositions{}, nil
	case ToolGetFills:
		return GetFills{}, nil
	case ToolCancel:
		return Cancel{}, nil
	case ToolReplace:
		return Replace{}, nil
	default:
		return Unknown{Name: tool}, nil
	}
}

func parseSubmitOrder(input json.RawMessage) (Call, error) {
	var in submitOrderInput
	if len(bytes.TrimSpace(input)) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, invalidInput(ToolSubmitOrder, "decoding input: %v", err)
		}
	}

	if in.Symbol == nil {
		return nil, invalidInput(ToolSubmitOrder, "symbol is required")
	}
	if *in.Symbol == "" {
		return nil, invalidInput(ToolSubmitOrder, "symbol must not be empty")
	}
	if in.Side == nil {
		return nil, invalidInput(ToolSubmitOrder, "side is required")
	}
	side, ok := domain.ParseSide(*in.Side)
	if !ok {
		return nil, invalidInput(ToolSubmitOrder, "side %q must be BUY or SELL", *in.Side)
	}
	if in.Qty == nil {
		return nil, invalidInput(ToolSubmitOrder, "qty is required")
	}
	if *in.Qty <= 0 {
		return nil, invalidInput(ToolSubmitOrder, "qty must be positive, got %d", *in.Qty)
	}
	if in.Price != nil && *in.Price <= 0 {
		return nil, invalidInput(ToolSubmitOrder, "price must be positive, got %g", *in.Price)
	}

	order := SubmitOrder{
		Symbol: *in.Symbol,
		Side:   side,
		Qty:    *in.Qty,
		Price:  in.Price,
	}
	if in.StrategyID != nil {
		order.StrategyID = *in.StrategyID
	}
	return order, nil
}
