package amm

import (
	"errors"

	errorsmod "cosmossdk.io/errors"

	"ammEngine/internal/fixed"
)

// Codespace is the error codespace of the engine.
const Codespace = "amm"

// Validation errors: bad input, rejected before any state is read.
var (
	ErrInvalidParams = errorsmod.Register(Codespace, 2, "invalid pool params")
	ErrInvalidAmount = errorsmod.Register(Codespace, 3, "invalid amount")
	ErrInvalidSymbol = errorsmod.Register(Codespace, 4, "invalid symbol")
)

// Bounds errors: expected protective rejections surfaced verbatim.
var (
	ErrExceedsMaxIn       = errorsmod.Register(Codespace, 10, "amount in exceeds max in bound")
	ErrExceedsMaxOut      = errorsmod.Register(Codespace, 11, "amount out exceeds max out bound")
	ErrSlippageExceeded   = errorsmod.Register(Codespace, 12, "slippage exceeded")
	ErrRequestExpired     = errorsmod.Register(Codespace, 13, "request expired")
	ErrInsufficientOutput = errorsmod.Register(Codespace, 14, "insufficient output amount")
)

// Business errors.
var (
	ErrInsufficientLPBalance = errorsmod.Register(Codespace, 20, "insufficient lp balance")
	ErrZeroLiquidity         = errorsmod.Register(Codespace, 21, "zero liquidity minted")
	ErrDuplicateID           = errorsmod.Register(Codespace, 22, "duplicate id")
	ErrNotFound              = errorsmod.Register(Codespace, 23, "not found")
	ErrAlreadyInitialized    = errorsmod.Register(Codespace, 24, "pool already initialized")
	ErrPoolNotActive         = errorsmod.Register(Codespace, 25, "pool not active")
	ErrRequestNotFound       = errorsmod.Register(Codespace, 26, "swap request not found")
)

// ErrInvariantViolation signals an arithmetic or logic bug. It is never expected.
var ErrInvariantViolation = errorsmod.Register(Codespace, 30, "invariant violation")

// Class is the taxonomy bucket of an engine error.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassBounds
	ClassBusiness
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassBounds:
		return "bounds"
	case ClassBusiness:
		return "business"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassValidation, []error{ErrInvalidParams, ErrInvalidAmount, ErrInvalidSymbol, fixed.ErrInvalidAmount}},
	{ClassBounds, []error{ErrExceedsMaxIn, ErrExceedsMaxOut, ErrSlippageExceeded, ErrRequestExpired, ErrInsufficientOutput}},
	{ClassBusiness, []error{
		ErrInsufficientLPBalance, ErrZeroLiquidity, ErrDuplicateID, ErrNotFound,
		ErrAlreadyInitialized, ErrPoolNotActive, ErrRequestNotFound,
	}},
	{ClassInvariant, []error{ErrInvariantViolation, fixed.ErrUnderflow, fixed.ErrOverflow, fixed.ErrDivisionByZero}},
}

// Classify maps an error returned by the engine to its taxonomy class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassUnknown
}
