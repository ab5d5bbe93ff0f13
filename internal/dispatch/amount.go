package dispatch

import (
	"math"
	"strconv"

	"github.com/udisondev/rtgateway/internal/engine"
)

// MaxSafeInteger mirrors the spec's bet-amount ceiling: the largest integer
// exactly representable in an IEEE-754 double, kept here so Go enforces the
// same bound the original JSON-number protocol relied on.
const MaxSafeInteger = 1<<53 - 1

// ValidateAmount rejects non-finite, negative, fractional, or
// too-large bet amounts before they ever reach a signed instruction.
func ValidateAmount(v float64) (uint64, *engine.Error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, engine.NewError(engine.CodeInvalidBet, "amount must be a finite number")
	}
	if v < 0 {
		return 0, engine.NewError(engine.CodeInvalidBet, "amount must be non-negative")
	}
	if v > MaxSafeInteger {
		return 0, engine.NewError(engine.CodeInvalidBet, "amount exceeds maximum safe integer")
	}
	if v != math.Trunc(v) {
		return 0, engine.NewError(engine.CodeInvalidBet, "amount must be a whole number of chips")
	}
	return uint64(v), nil
}

// DecimalString renders a chip amount as a decimal string, per the spec's
// rule that balance/bet/payout fields are always serialized as strings.
func DecimalString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
