// Package brokergw is a Go SDK for the broker gateway HTTP API.
package brokergw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Tool names accepted by POST /call.
const (
	ToolSubmitOrder  = "broker-gateway.submit_order"
	ToolGetPositions = "broker-gateway.get_positions"
	ToolGetFills     = "broker-gateway.get_fills"
	ToolCancel       = "broker-gateway.cancel"
	ToolReplace      = "broker-gateway.replace"
)

// Error codes carried in APIError.Code.
const (
	CodeInvalidInput = "invalid_input"
	CodeToolNotFound = "tool_not_found"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// SubmitOrderRequest is the input of submit_order. A nil Price lets the
// server apply its default.
type SubmitOrderRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Qty        int64    `json:"qty"`
	Price      *float64 `json:"price,omitempty"`
	StrategyID string   `json:"strategy_id,omitempty"`
}

// SubmitOrderResponse is returned for an accepted order.
type SubmitOrderResponse struct {
	ClOrdID string `json:"cl_ord_id"`
	Status  string `json:"status"`
}

// Position is the net quantity held in one symbol.
type Position struct {
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
}

// Fill is one simulated execution.
type Fill struct {
	Timestamp time.Time `json:"ts"`
	ClOrdID   string    `json:"cl_ord_id"`
	ExecID    string    `json:"exec_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Qty       int64     `json:"qty"`
	Venue     string    `json:"venue"`
}

type callRequest struct {
	Tool  string `json:"tool"`
	Input any    `json:"input,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("brokergw: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("brokergw: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsInvalidInput reports whether err is an APIError for rejected input.
func IsInvalidInput(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeInvalidInput
}

// IsToolNotFound reports whether err is an APIError for an unknown tool.
func IsToolNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeToolNotFound
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client provides a Go SDK for interacting with the brokergw server API.
type Client struct {
	http *resty.Client
}

// Option customises a Client.
type Option func(*resty.Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries retries failed reads up to count times, starting at wait
// between attempts. Order submissions are never retried.
func WithRetries(count int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(10 * wait)
	}
}

// NewClient creates a new brokergw API client.
func NewClient(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "brokergw-go").
		AddRetryCondition(retryable)
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// retryable retries transport failures and server errors, except for order
// submissions, which are not idempotent.
func retryable(resp *resty.Response, err error) bool {
	if resp != nil && resp.Request != nil {
		if req, ok := resp.Request.Body.(callRequest); ok && req.Tool == ToolSubmitOrder {
			return false
		}
	}
	if err != nil {
		return true
	}
	return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
}

// Call invokes tool with input and decodes the result into out. out may be
// nil to discard the result.
func (c *Client) Call(ctx context.Context, tool string, input any, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(callRequest{Tool: tool, Input: input}).
		SetError(&errorBody{})
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post("/call")
	if err != nil {
		return errors.Wrapf(err, "calling %s", tool)
	}
	return apiError(resp)
}

// SubmitOrder submits an order; the server fills it immediately.
func (c *Client) SubmitOrder(ctx context.Context, order SubmitOrderRequest) (*SubmitOrderResponse, error) {
	var out SubmitOrderResponse
	if err := c.Call(ctx, ToolSubmitOrder, order, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPositions returns all positions, sorted by symbol.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var out struct {
		Positions []Position `json:"positions"`
	}
	if err := c.Call(ctx, ToolGetPositions, nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// GetFills returns the fill history in execution order.
func (c *Client) GetFills(ctx context.Context) ([]Fill, error) {
	var out struct {
		Fills []Fill `json:"fills"`
	}
	if err := c.Call(ctx, ToolGetFills, nil, &out); err != nil {
		return nil, err
	}
	return out.Fills, nil
}

// Cancel requests cancellation of clOrdID and returns the reported status.
func (c *Client) Cancel(ctx context.Context, clOrdID string) (string, error) {
	return c.statusCall(ctx, ToolCancel, clOrdID)
}

// Replace requests replacement of clOrdID and returns the reported status.
func (c *Client) Replace(ctx context.Context, clOrdID string) (string, error) {
	return c.statusCall(ctx, ToolReplace, clOrdID)
}

func (c *Client) statusCall(ctx context.Context, tool, clOrdID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	input := map[string]string{"cl_ord_id": clOrdID}
	if err := c.Call(ctx, tool, input, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{}).
		Get("/health")
	if err != nil {
		return errors.Wrap(err, "checking health")
	}
	return apiError(resp)
}

func apiError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		return apiErr
	}
	// Non-JSON error bodies keep the raw text.
	var body errorBody
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		apiErr.Code, apiErr.Message = body.Error, body.Message
	} else {
		apiErr.Code = http.StatusText(resp.StatusCode())
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	return apiErr
}
