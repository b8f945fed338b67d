package amm

import (
	"strings"
	"time"

	"ammEngine/internal/fixed"
)

const (
	maxFeeBps    = 1000
	maxSymbolLen = 32
)

// ValidatePoolParams checks the immutable configuration of a pool.
func ValidatePoolParams(p PoolParams) error {
	if strings.TrimSpace(p.PoolID) == "" {
		return ErrInvalidParams.Wrap("pool id is required")
	}
	if err := validateSymbol(p.SymbolA); err != nil {
		return err
	}
	if err := validateSymbol(p.SymbolB); err != nil {
		return err
	}
	if p.SymbolA == p.SymbolB {
		return ErrInvalidSymbol.Wrapf("symbol a and symbol b are both %q", p.SymbolA)
	}
	if p.FeeBps == 0 || p.FeeBps > maxFeeBps {
		return ErrInvalidParams.Wrapf("fee bps %d outside (0, %d]", p.FeeBps, maxFeeBps)
	}
	if p.ProtocolFeeShareBps > fixed.BpsDenominator {
		return ErrInvalidParams.Wrapf("protocol fee share bps %d above %d", p.ProtocolFeeShareBps, fixed.BpsDenominator)
	}
	if p.ProtocolFeeShareBps > 0 && strings.TrimSpace(p.ProtocolFeeReceiver) == "" {
		return ErrInvalidParams.Wrap("protocol fee receiver is required when protocol share is set")
	}
	if p.MaxInBps == 0 || p.MaxInBps > fixed.BpsDenominator {
		return ErrInvalidParams.Wrapf("max in bps %d outside (0, %d]", p.MaxInBps, fixed.BpsDenominator)
	}
	if p.MaxOutBps == 0 || p.MaxOutBps > fixed.BpsDenominator {
		return ErrInvalidParams.Wrapf("max out bps %d outside (0, %d]", p.MaxOutBps, fixed.BpsDenominator)
	}
	if p.MaxTTL < 0 {
		return ErrInvalidParams.Wrapf("negative max ttl %s", p.MaxTTL)
	}
	return nil
}

func validateSymbol(symbol string) error {
	if symbol == "" || len(symbol) > maxSymbolLen || strings.TrimSpace(symbol) != symbol {
		return ErrInvalidSymbol.Wrapf("symbol %q", symbol)
	}
	return nil
}

// ValidateMaxIn fails when amountIn > reserveIn·maxInBps/10000.
func ValidateMaxIn(amountIn, reserveIn fixed.Amount, maxInBps uint32) error {
	if fixed.ExceedsBps(amountIn, reserveIn, maxInBps) {
		return ErrExceedsMaxIn.Wrapf("amount in %s, reserve %s, max %d bps", amountIn, reserveIn, maxInBps)
	}
	return nil
}

// ValidateMaxOut fails when amountOut > reserveOut·maxOutBps/10000.
func ValidateMaxOut(amountOut, reserveOut fixed.Amount, maxOutBps uint32) error {
	if fixed.ExceedsBps(amountOut, reserveOut, maxOutBps) {
		return ErrExceedsMaxOut.Wrapf("amount out %s, reserve %s, max %d bps", amountOut, reserveOut, maxOutBps)
	}
	return nil
}

// ValidateSwapBounds runs both size bounds for a trade in the given direction.
func ValidateSwapBounds(state PoolState, params PoolParams, dir Direction, amountIn, amountOut fixed.Amount) error {
	reserveIn, reserveOut := state.reserves(dir)
	if err := ValidateMaxIn(amountIn, reserveIn, params.MaxInBps); err != nil {
		return err
	}
	return ValidateMaxOut(amountOut, reserveOut, params.MaxOutBps)
}

// ValidateSlippage fails when amountOut < minAmountOut.
func ValidateSlippage(amountOut, minAmountOut fixed.Amount) error {
	if amountOut.LT(minAmountOut) {
		return ErrSlippageExceeded.Wrapf("amount out %s below minimum %s", amountOut, minAmountOut)
	}
	return nil
}

// ValidateDeadline fails only when now is strictly after expiresAt.
func ValidateDeadline(now, expiresAt time.Time) error {
	if now.After(expiresAt) {
		return ErrRequestExpired.Wrapf("expired at %s, now %s", expiresAt.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano))
	}
	return nil
}

// ValidateKNonDecreasing fails with ErrInvariantViolation when kAfter < kBefore.
func ValidateKNonDecreasing(kBefore, kAfter fixed.K) error {
	if kAfter.LT(kBefore) {
		return ErrInvariantViolation.Wrapf("k decreased from %s to %s", kBefore, kAfter)
	}
	return nil
}
