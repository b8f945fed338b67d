package amm

import (
	"ammEngine/internal/fixed"
)

// ImpactClass buckets a trade by its size relative to the input reserve.
type ImpactClass string

const (
	ImpactSmall  ImpactClass = "small"
	ImpactMedium ImpactClass = "medium"
	ImpactLarge  ImpactClass = "large"
)

// ImpactThresholds are the bucket edges in bps of the input reserve.
type ImpactThresholds struct {
	SmallBps uint32
	LargeBps uint32
}

// DefaultImpactThresholds puts trades under 1% in small and 10% or more in large.
var DefaultImpactThresholds = ImpactThresholds{SmallBps: 100, LargeBps: 1000}

func (t ImpactThresholds) classify(amountIn, reserveIn fixed.Amount) ImpactClass {
	switch {
	case fixed.CmpBps(amountIn, reserveIn, t.SmallBps) < 0:
		return ImpactSmall
	case fixed.CmpBps(amountIn, reserveIn, t.LargeBps) >= 0:
		return ImpactLarge
	default:
		return ImpactMedium
	}
}

// QuoteParams is a request to price a trade.
type QuoteParams struct {
	PoolID       string
	SymbolIn     string
	AmountIn     fixed.Amount
	MinAmountOut fixed.Amount
	Requester    string
}

// swapResult is one trade derived against a specific reserve tuple.
type swapResult struct {
	dir            Direction
	amountIn       fixed.Amount
	amountOut      fixed.Amount
	fee            FeeBreakdown
	reserveIn      fixed.Amount
	reserveOut     fixed.Amount
	newReserveIn   fixed.Amount
	newReserveOut  fixed.Amount
	priceImpactBps uint64
	impact         ImpactClass
}

// computeSwap prices amountIn against s. The input bound is checked before any
// reserve arithmetic. The committed input reserve also keeps the LP fee.
func computeSwap(s PoolState, params PoolParams, dir Direction, amountIn fixed.Amount, thresholds ImpactThresholds) (swapResult, error) {
	if !amountIn.IsPositive() {
		return swapResult{}, ErrInvalidAmount.Wrap("amount in must be positive")
	}
	reserveIn, reserveOut := s.reserves(dir)
	if s.Status != StatusActive || reserveIn.IsZero() || reserveOut.IsZero() {
		return swapResult{}, ErrPoolNotActive.Wrapf("pool %s has no reserves", params.PoolID)
	}
	if err := ValidateMaxIn(amountIn, reserveIn, params.MaxInBps); err != nil {
		return swapResult{}, err
	}

	fee, err := ComputeFee(amountIn, params.FeeBps, params.ProtocolFeeShareBps)
	if err != nil {
		return swapResult{}, err
	}
	if fee.AmountInAfterFee.IsZero() {
		return swapResult{}, ErrInvalidAmount.Wrapf("amount in %s is consumed by the fee", amountIn)
	}

	tradedIn, err := reserveIn.Add(fee.AmountInAfterFee)
	if err != nil {
		return swapResult{}, err
	}
	// Rounding the remaining reserve up rounds the payout down.
	newReserveOut, err := fixed.MulDivUp(reserveIn, reserveOut, tradedIn)
	if err != nil {
		return swapResult{}, err
	}
	amountOut, err := reserveOut.Sub(newReserveOut)
	if err != nil {
		return swapResult{}, ErrInvariantViolation.Wrapf("new reserve out %s above %s", newReserveOut, reserveOut)
	}
	if amountOut.IsZero() {
		return swapResult{}, ErrInsufficientOutput.Wrapf("amount in %s yields no output", amountIn)
	}
	if err := ValidateMaxOut(amountOut, reserveOut, params.MaxOutBps); err != nil {
		return swapResult{}, err
	}

	newReserveIn, err := tradedIn.Add(fee.LP)
	if err != nil {
		return swapResult{}, err
	}
	impactBps, err := fixed.RatioBps(amountOut, reserveOut)
	if err != nil {
		return swapResult{}, err
	}

	return swapResult{
		dir:            dir,
		amountIn:       amountIn,
		amountOut:      amountOut,
		fee:            fee,
		reserveIn:      reserveIn,
		reserveOut:     reserveOut,
		newReserveIn:   newReserveIn,
		newReserveOut:  newReserveOut,
		priceImpactBps: impactBps,
		impact:         thresholds.classify(amountIn, reserveIn),
	}, nil
}
