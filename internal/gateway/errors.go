package gateway

import (
	"fmt"

	"github.com/pkg/errors"

	"brokergw/internal/metrics"
)

var (
	// ErrInvalidInput marks a call whose input could not be decoded or failed
	// validation. Nothing was applied to the ledger.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolNotFound marks a call naming a tool the gateway does not know.
	ErrToolNotFound = errors.New("tool not found")
)

func invalidInput(tool, format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, "%s: %s", tool, fmt.Sprintf(format, args...))
}

// Outcome classifies err for metrics and transport status mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, ErrToolNotFound):
		return metrics.OutcomeToolNotFound
	default:
		return metrics.OutcomeError
	}
}
