package amm

import (
	"ammEngine/internal/fixed"
)

// FeeBreakdown splits the gross fee on one trade.
type FeeBreakdown struct {
	Total            fixed.Amount
	LP               fixed.Amount
	Protocol         fixed.Amount
	AmountInAfterFee fixed.Amount
}

// ComputeFee charges ⌈amountIn·feeBps/10000⌉ and gives the protocol
// ⌊total·protocolShareBps/10000⌋ of it. The LP part is the remainder.
func ComputeFee(amountIn fixed.Amount, feeBps, protocolShareBps uint32) (FeeBreakdown, error) {
	total, err := fixed.MulBpsUp(amountIn, feeBps)
	if err != nil {
		return FeeBreakdown{}, err
	}
	protocol, err := fixed.MulBps(total, protocolShareBps)
	if err != nil {
		return FeeBreakdown{}, err
	}
	lp, err := total.Sub(protocol)
	if err != nil {
		return FeeBreakdown{}, err
	}
	afterFee, err := amountIn.Sub(total)
	if err != nil {
		return FeeBreakdown{}, ErrInvalidAmount.Wrapf("fee %s exceeds amount in %s", total, amountIn)
	}
	return FeeBreakdown{
		Total:            total,
		LP:               lp,
		Protocol:         protocol,
		AmountInAfterFee: afterFee,
	}, nil
}
