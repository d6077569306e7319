package gateway

// Limits enforces pre-trade rules on top of input validation. A nil *Limits
// or a zero limit disables the corresponding check.
type Limits struct {
	maxOrderQty int64
}

// NewLimits creates Limits with the specified thresholds.
//
//   - maxOrderQty: largest qty a single submission may carry (0 = unlimited).
func NewLimits(maxOrderQty int64) *Limits {
	return &Limits{maxOrderQty: maxOrderQty}
}

// CheckOrder rejects orders that break a configured limit with
// ErrInvalidInput.
func (l *Limits) CheckOrder(o SubmitOrder) error {
	if l == nil {
		return nil
	}
	if l.maxOrderQty > 0 && o.Qty > l.maxOrderQty {
		return invalidInput(o.Tool(), "qty %d exceeds max order qty %d", o.Qty, l.maxOrderQty)
	}
	return nil
}
