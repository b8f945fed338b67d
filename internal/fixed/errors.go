package fixed

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace of the arithmetic core.
const Codespace = "fixed"

var (
	ErrUnderflow      = errorsmod.Register(Codespace, 2, "underflow")
	ErrOverflow       = errorsmod.Register(Codespace, 3, "overflow")
	ErrDivisionByZero = errorsmod.Register(Codespace, 4, "division by zero")
	ErrInvalidAmount  = errorsmod.Register(Codespace, 5, "invalid amount")
)
