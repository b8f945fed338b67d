package amm

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

// AddLiquidityParams is a deposit of up to AmountA and AmountB.
type AddLiquidityParams struct {
	PoolID      string
	Provider    string
	AmountA     fixed.Amount
	AmountB     fixed.Amount
	MinLPTokens fixed.Amount
	// Deadline is optional; the zero time means no deadline.
	Deadline time.Time
}

// RemoveLiquidityParams burns LPAmount of the provider's position.
type RemoveLiquidityParams struct {
	PoolID     string
	Provider   string
	LPAmount   fixed.Amount
	MinAmountA fixed.Amount
	MinAmountB fixed.Amount
	Deadline   time.Time
}

type addResult struct {
	lp      fixed.Amount
	amountA fixed.Amount
	amountB fixed.Amount
	next    PoolState
}

type removeResult struct {
	amountA fixed.Amount
	amountB fixed.Amount
	next    PoolState
}

func firstLiquidity(amountA, amountB fixed.Amount) (fixed.Amount, error) {
	if !amountA.IsPositive() || !amountB.IsPositive() {
		return fixed.Amount{}, ErrInvalidAmount.Wrapf("first deposit needs both assets, got %s/%s", amountA, amountB)
	}
	lp, err := fixed.SqrtProduct(amountA, amountB)
	if err != nil {
		return fixed.Amount{}, err
	}
	if lp.IsZero() {
		return fixed.Amount{}, ErrZeroLiquidity.Wrapf("deposit %s/%s", amountA, amountB)
	}
	return lp, nil
}

// computeAdd derives the LP tokens minted by a deposit and the amounts
// actually consumed. Only the proportional part of an unbalanced deposit is taken.
func computeAdd(s PoolState, amountA, amountB fixed.Amount) (addResult, error) {
	if s.Status == StatusUninitialized {
		next, lp, err := initialize(s, amountA, amountB)
		if err != nil {
			return addResult{}, err
		}
		return addResult{lp: lp, amountA: amountA, amountB: amountB, next: next}, nil
	}

	if s.TotalLPSupply.IsZero() {
		// Drained pool: the first-deposit formula pins a fresh price.
		lp, err := firstLiquidity(amountA, amountB)
		if err != nil {
			return addResult{}, err
		}
		next, err := applyLiquidityChange(s, amountA, amountB, lp)
		if err != nil {
			return addResult{}, err
		}
		return addResult{lp: lp, amountA: amountA, amountB: amountB, next: next}, nil
	}

	supply := s.TotalLPSupply
	shareA, err := fixed.MulDiv(amountA, supply, s.ReserveA)
	if err != nil {
		return addResult{}, err
	}
	shareB, err := fixed.MulDiv(amountB, supply, s.ReserveB)
	if err != nil {
		return addResult{}, err
	}
	lp := fixed.Min(shareA, shareB)
	if lp.IsZero() {
		return addResult{}, ErrZeroLiquidity.Wrapf("deposit %s/%s against supply %s", amountA, amountB, supply)
	}

	usedA, err := fixed.MulDivUp(lp, s.ReserveA, supply)
	if err != nil {
		return addResult{}, err
	}
	usedB, err := fixed.MulDivUp(lp, s.ReserveB, supply)
	if err != nil {
		return addResult{}, err
	}
	if usedA.GT(amountA) || usedB.GT(amountB) {
		return addResult{}, ErrInvariantViolation.Wrapf("consumed %s/%s above desired %s/%s", usedA, usedB, amountA, amountB)
	}

	reserveA, err := s.ReserveA.Add(usedA)
	if err != nil {
		return addResult{}, err
	}
	reserveB, err := s.ReserveB.Add(usedB)
	if err != nil {
		return addResult{}, err
	}
	newSupply, err := supply.Add(lp)
	if err != nil {
		return addResult{}, err
	}
	next, err := applyLiquidityChange(s, reserveA, reserveB, newSupply)
	if err != nil {
		return addResult{}, err
	}
	return addResult{lp: lp, amountA: usedA, amountB: usedB, next: next}, nil
}

// computeRemove derives the payout for burning lp tokens. Payouts round down.
func computeRemove(s PoolState, lp fixed.Amount) (removeResult, error) {
	if !lp.IsPositive() {
		return removeResult{}, ErrInvalidAmount.Wrap("lp amount must be positive")
	}
	if s.Status != StatusActive || s.TotalLPSupply.IsZero() {
		return removeResult{}, ErrInsufficientLPBalance.Wrapf("pool has no lp supply, requested %s", lp)
	}
	supply := s.TotalLPSupply
	if lp.GT(supply) {
		return removeResult{}, ErrInsufficientLPBalance.Wrapf("requested %s above total supply %s", lp, supply)
	}

	outA, err := fixed.MulDiv(s.ReserveA, lp, supply)
	if err != nil {
		return removeResult{}, err
	}
	outB, err := fixed.MulDiv(s.ReserveB, lp, supply)
	if err != nil {
		return removeResult{}, err
	}
	reserveA, err := s.ReserveA.Sub(outA)
	if err != nil {
		return removeResult{}, err
	}
	reserveB, err := s.ReserveB.Sub(outB)
	if err != nil {
		return removeResult{}, err
	}
	newSupply, err := supply.Sub(lp)
	if err != nil {
		return removeResult{}, err
	}
	if !newSupply.IsZero() && (reserveA.IsZero() || reserveB.IsZero()) {
		// Partial removal rounds down, so a reserve can only empty with the supply.
		return removeResult{}, ErrInvariantViolation.Wrapf("partial removal emptied a reserve: %s/%s", reserveA, reserveB)
	}
	next, err := applyLiquidityChange(s, reserveA, reserveB, newSupply)
	if err != nil {
		return removeResult{}, err
	}
	return removeResult{amountA: outA, amountB: outB, next: next}, nil
}

type positionKey struct {
	provider string
	poolID   string
}

// PositionBook holds each provider's LP tokens per pool. Entries for one pool
// are only changed while that pool's lock is held.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[positionKey]fixed.Amount
}

func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[positionKey]fixed.Amount)}
}

// Balance returns the provider's LP tokens in a pool.
func (b *PositionBook) Balance(provider, poolID string) fixed.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.positions[positionKey{provider, poolID}]; ok {
		return bal
	}
	return fixed.Zero()
}

// credit adds lp to a position.
func (b *PositionBook) credit(provider, poolID string, lp fixed.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := positionKey{provider, poolID}
	next, err := b.positions[key].Add(lp)
	if err != nil {
		return err
	}
	b.positions[key] = next
	return nil
}

// set replaces a position with a balance computed under the pool lock. A
// zero balance removes it.
func (b *PositionBook) set(provider, poolID string, bal fixed.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := positionKey{provider, poolID}
	if bal.IsZero() {
		delete(b.positions, key)
		return
	}
	b.positions[key] = bal
}

// Positions lists all non-zero positions ordered by pool then provider.
func (b *PositionBook) Positions() []model.LiquidityPosition {
	b.mu.RLock()
	out := make([]model.LiquidityPosition, 0, len(b.positions))
	for key, bal := range b.positions {
		out = append(out, model.LiquidityPosition{Provider: key.provider, PoolID: key.poolID, LPTokens: bal})
	}
	b.mu.RUnlock()

	slices.SortFunc(out, func(x, y model.LiquidityPosition) int {
		if c := cmp.Compare(x.PoolID, y.PoolID); c != 0 {
			return c
		}
		return cmp.Compare(x.Provider, y.Provider)
	})
	return out
}

func (b *PositionBook) restore(positions []model.LiquidityPosition) error {
	for _, pos := range positions {
		if pos.LPTokens.IsZero() {
			continue
		}
		if err := b.credit(pos.Provider, pos.PoolID, pos.LPTokens); err != nil {
			return err
		}
	}
	return nil
}
