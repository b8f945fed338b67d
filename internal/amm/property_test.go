package amm

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"pgregory.net/rapid"

	"ammEngine/internal/fixed"
)

func drawAmount(t *rapid.T, label string, min, max int64) fixed.Amount {
	raw := rapid.Int64Range(min, max).Draw(t, label)
	a, err := fixed.FromRaw(big.NewInt(raw))
	if err != nil {
		t.Fatalf("from raw %d: %v", raw, err)
	}
	return a
}

func drawParams(t *rapid.T) PoolParams {
	return PoolParams{
		PoolID:              "prop",
		SymbolA:             "A",
		SymbolB:             "B",
		FeeBps:              rapid.Uint32Range(1, 1000).Draw(t, "feeBps"),
		ProtocolFeeShareBps: rapid.Uint32Range(0, 10_000).Draw(t, "shareBps"),
		ProtocolFeeReceiver: "treasury",
		MaxInBps:            10_000,
		MaxOutBps:           10_000,
		MaxTTL:              time.Minute,
	}
}

func drawActivePool(t *rapid.T) PoolState {
	a := drawAmount(t, "reserveA", 1, 1<<62)
	b := drawAmount(t, "reserveB", 1, 1<<62)
	s, _, err := initialize(PoolState{}, a, b)
	if err != nil {
		t.Fatalf("initialize %s/%s: %v", a, b, err)
	}
	return s
}

// Every accepted swap keeps k, pays out less than the output reserve and
// commits reserves that reflect the fee split.
func TestSwapPreservesK(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		params := drawParams(t)
		state := drawActivePool(t)
		dir := Direction(rapid.IntRange(0, 1).Draw(t, "dir"))
		amountIn := drawAmount(t, "amountIn", 1, 1<<62)

		r, err := computeSwap(state, params, dir, amountIn, DefaultImpactThresholds)
		if err != nil {
			if Classify(err) == ClassInvariant {
				t.Fatalf("invariant error: %v", err)
			}
			return
		}
		reserveIn, reserveOut := state.reserves(dir)
		if !r.amountOut.LT(reserveOut) {
			t.Fatalf("amount out %s drains reserve %s", r.amountOut, reserveOut)
		}
		if !r.amountOut.IsPositive() {
			t.Fatalf("accepted swap with zero output")
		}

		next, err := applySwap(state, dir, r.newReserveIn, r.newReserveOut)
		if err != nil {
			t.Fatalf("apply swap: %v", err)
		}
		if next.K().LT(state.K()) {
			t.Fatalf("k decreased: %s -> %s", state.K(), next.K())
		}

		wantIn, err := reserveIn.Add(r.fee.AmountInAfterFee)
		if err != nil {
			t.Fatal(err)
		}
		wantIn, err = wantIn.Add(r.fee.LP)
		if err != nil {
			t.Fatal(err)
		}
		if !r.newReserveIn.Equal(wantIn) {
			t.Fatalf("reserve in %s, want %s", r.newReserveIn, wantIn)
		}
		total, err := r.fee.LP.Add(r.fee.Protocol)
		if err != nil {
			t.Fatal(err)
		}
		if !total.Equal(r.fee.Total) {
			t.Fatalf("fee split %s + %s != %s", r.fee.LP, r.fee.Protocol, r.fee.Total)
		}
	})
}

// A sequence of swaps in random directions never lowers k.
func TestSwapSequencePreservesK(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		params := drawParams(t)
		state := drawActivePool(t)
		start := state.K()

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			dir := Direction(rapid.IntRange(0, 1).Draw(t, "dir"))
			amountIn := drawAmount(t, "amountIn", 1, 1<<50)
			r, err := computeSwap(state, params, dir, amountIn, DefaultImpactThresholds)
			if err != nil {
				continue
			}
			next, err := applySwap(state, dir, r.newReserveIn, r.newReserveOut)
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			state = next
		}
		if state.K().LT(start) {
			t.Fatalf("k decreased over sequence: %s -> %s", start, state.K())
		}
	})
}

// Adding then immediately removing never refunds more than was deposited.
func TestAddRemoveRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := drawActivePool(t)
		amountA := drawAmount(t, "amountA", 1, 1<<62)
		amountB := drawAmount(t, "amountB", 1, 1<<62)

		added, err := computeAdd(state, amountA, amountB)
		if err != nil {
			if !errors.Is(err, ErrZeroLiquidity) {
				t.Fatalf("add: %v", err)
			}
			return
		}
		if added.amountA.GT(amountA) || added.amountB.GT(amountB) {
			t.Fatalf("consumed %s/%s above desired %s/%s", added.amountA, added.amountB, amountA, amountB)
		}

		removed, err := computeRemove(added.next, added.lp)
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if removed.amountA.GT(added.amountA) || removed.amountB.GT(added.amountB) {
			t.Fatalf("refund %s/%s above deposit %s/%s", removed.amountA, removed.amountB, added.amountA, added.amountB)
		}
		if removed.next.ReserveA.LT(state.ReserveA) || removed.next.ReserveB.LT(state.ReserveB) {
			t.Fatalf("round trip drained the pool")
		}
	})
}

// Removing everything empties the pool and the next deposit mints isqrt(a·b).
func TestDrainAndRegrow(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := drawActivePool(t)
		removed, err := computeRemove(state, state.TotalLPSupply)
		if err != nil {
			t.Fatalf("remove all: %v", err)
		}
		if !removed.amountA.Equal(state.ReserveA) || !removed.amountB.Equal(state.ReserveB) {
			t.Fatalf("full removal paid %s/%s of %s/%s", removed.amountA, removed.amountB, state.ReserveA, state.ReserveB)
		}
		if removed.next.Status != StatusActive || !removed.next.TotalLPSupply.IsZero() {
			t.Fatalf("unexpected drained state %+v", removed.next)
		}

		amountA := drawAmount(t, "amountA", 1, 1<<62)
		amountB := drawAmount(t, "amountB", 1, 1<<62)
		want, err := fixed.SqrtProduct(amountA, amountB)
		if err != nil {
			t.Fatal(err)
		}
		added, err := computeAdd(removed.next, amountA, amountB)
		if want.IsZero() {
			if !errors.Is(err, ErrZeroLiquidity) {
				t.Fatalf("expected zero liquidity, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("regrow: %v", err)
		}
		if !added.lp.Equal(want) {
			t.Fatalf("regrow minted %s, want %s", added.lp, want)
		}
	})
}
