package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"ammEngine/internal/fixed"
)

const ratioScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

// computeFeeRate values the window's LP fees in token B at the closing
// price and divides them by the closing TVL, also in token B.
func computeFeeRate(acc *Accumulator) *string {
	if acc.ReserveA.IsZero() || acc.ReserveB.IsZero() {
		return nil
	}
	if acc.LPFeeA.IsZero() && acc.LPFeeB.IsZero() {
		return nil
	}

	feeAInB, err := fixed.MulDiv(acc.LPFeeA, acc.ReserveB, acc.ReserveA)
	if err != nil {
		return nil
	}
	feeValue := feeAInB.Decimal().Add(acc.LPFeeB.Decimal())
	tvl := acc.ReserveB.Decimal().Mul(decimal.NewFromInt(2))

	rate := feeValue.DivRound(tvl, ratioScale).StringFixed(ratioScale)
	return &rate
}

func computeAPR(feeRate *string, windowSeconds int64) *string {
	if feeRate == nil || windowSeconds <= 0 {
		return nil
	}
	rate, err := decimal.NewFromString(*feeRate)
	if err != nil {
		return nil
	}
	apr := rate.Mul(yearSeconds).DivRound(decimal.NewFromInt(windowSeconds), ratioScale).StringFixed(ratioScale)
	return &apr
}

func windowStart(ts time.Time, windowSec int64) int64 {
	unix := ts.Unix()
	return unix - (unix % windowSec)
}
