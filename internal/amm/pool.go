package amm

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

// Status is the lifecycle state of a pool. A pool never returns to Uninitialized.
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func parseStatus(s string) (Status, error) {
	switch s {
	case "uninitialized":
		return StatusUninitialized, nil
	case "active":
		return StatusActive, nil
	default:
		return 0, ErrInvalidParams.Wrapf("unknown pool status %q", s)
	}
}

// Direction is the side of the pool a trade pays into.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

// PoolParams is the configuration fixed at pool creation.
type PoolParams struct {
	PoolID              string
	SymbolA             string
	SymbolB             string
	FeeBps              uint32
	ProtocolFeeShareBps uint32
	ProtocolFeeReceiver string
	MaxInBps            uint32
	MaxOutBps           uint32
	MaxTTL              time.Duration
}

// Direction resolves the trade direction for an input symbol.
func (p PoolParams) Direction(symbolIn string) (Direction, error) {
	switch symbolIn {
	case p.SymbolA:
		return AToB, nil
	case p.SymbolB:
		return BToA, nil
	default:
		return 0, ErrInvalidSymbol.Wrapf("%q is not traded by pool %s", symbolIn, p.PoolID)
	}
}

func (p PoolParams) symbols(dir Direction) (in, out string) {
	if dir == AToB {
		return p.SymbolA, p.SymbolB
	}
	return p.SymbolB, p.SymbolA
}

// FeeRate renders FeeBps as a decimal fraction, e.g. 30 bps as "0.003".
func (p PoolParams) FeeRate() string {
	return decimal.New(int64(p.FeeBps), 0).Div(decimal.New(fixed.BpsDenominator, 0)).String()
}

// PoolState is the mutable reserve tuple of a pool. It is always replaced as a whole.
type PoolState struct {
	ReserveA      fixed.Amount
	ReserveB      fixed.Amount
	TotalLPSupply fixed.Amount
	Status        Status
}

// K returns reserveA·reserveB.
func (s PoolState) K() fixed.K {
	return fixed.Product(s.ReserveA, s.ReserveB)
}

func (s PoolState) reserves(dir Direction) (in, out fixed.Amount) {
	if dir == AToB {
		return s.ReserveA, s.ReserveB
	}
	return s.ReserveB, s.ReserveA
}

// initialize seeds an uninitialized pool with its first deposit.
func initialize(s PoolState, amountA, amountB fixed.Amount) (PoolState, fixed.Amount, error) {
	if s.Status != StatusUninitialized {
		return PoolState{}, fixed.Amount{}, ErrAlreadyInitialized.Wrapf("reserves %s/%s", s.ReserveA, s.ReserveB)
	}
	lp, err := firstLiquidity(amountA, amountB)
	if err != nil {
		return PoolState{}, fixed.Amount{}, err
	}
	return PoolState{
		ReserveA:      amountA,
		ReserveB:      amountB,
		TotalLPSupply: lp,
		Status:        StatusActive,
	}, lp, nil
}

// applySwap replaces the reserves with their post-trade values and re-checks k.
func applySwap(s PoolState, dir Direction, newReserveIn, newReserveOut fixed.Amount) (PoolState, error) {
	if s.Status != StatusActive {
		return PoolState{}, ErrPoolNotActive.Wrap("swap on uninitialized pool")
	}
	next := s
	if dir == AToB {
		next.ReserveA, next.ReserveB = newReserveIn, newReserveOut
	} else {
		next.ReserveB, next.ReserveA = newReserveIn, newReserveOut
	}
	if err := ValidateKNonDecreasing(s.K(), next.K()); err != nil {
		return PoolState{}, err
	}
	return next, nil
}

// applyLiquidityChange replaces the full {reserveA, reserveB, totalLPSupply} tuple.
func applyLiquidityChange(s PoolState, reserveA, reserveB, supply fixed.Amount) (PoolState, error) {
	if s.Status != StatusActive {
		return PoolState{}, ErrPoolNotActive.Wrap("liquidity change on uninitialized pool")
	}
	if supply.IsZero() != (reserveA.IsZero() && reserveB.IsZero()) {
		return PoolState{}, ErrInvariantViolation.Wrapf("supply %s with reserves %s/%s", supply, reserveA, reserveB)
	}
	return PoolState{
		ReserveA:      reserveA,
		ReserveB:      reserveB,
		TotalLPSupply: supply,
		Status:        StatusActive,
	}, nil
}

// transition computes the next state from the current one. The returned
// commit hook, if any, runs after the new state is installed while the pool
// lock is still held. It cannot fail: anything that could is checked by the
// transition before it returns.
type transition func(PoolState) (PoolState, func(), error)

// Pool is one two-asset reserve pair. All mutations are serialized by its lock.
type Pool struct {
	params PoolParams

	mu    sync.RWMutex
	state PoolState
}

// NewPool validates params and returns an uninitialized pool.
func NewPool(params PoolParams) (*Pool, error) {
	if err := ValidatePoolParams(params); err != nil {
		return nil, err
	}
	return &Pool{params: params, state: PoolState{Status: StatusUninitialized}}, nil
}

func (p *Pool) ID() string { return p.params.PoolID }

// Params returns the immutable configuration.
func (p *Pool) Params() PoolParams { return p.params }

// Snapshot returns a consistent copy of the current state.
func (p *Pool) Snapshot() PoolState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// update runs fn and installs its result atomically. On error nothing changes.
func (p *Pool) update(fn transition) (before, after PoolState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before = p.state
	next, onCommit, err := fn(before)
	if err != nil {
		return before, before, err
	}
	p.state = next
	if onCommit != nil {
		onCommit()
	}
	return before, next, nil
}

// View renders the snapshot exposed to read-only consumers.
func (p *Pool) View() model.PoolSnapshot {
	s := p.Snapshot()
	return model.PoolSnapshot{
		PoolID:        p.params.PoolID,
		SymbolA:       p.params.SymbolA,
		SymbolB:       p.params.SymbolB,
		ReserveA:      s.ReserveA,
		ReserveB:      s.ReserveB,
		FeeRate:       p.params.FeeRate(),
		TotalLPSupply: s.TotalLPSupply,
		Status:        s.Status.String(),
	}
}

// SpotPrice returns the marginal price in both directions, rounded down to
// the amount scale.
func (p *Pool) SpotPrice() (model.SpotPrice, error) {
	s := p.Snapshot()
	if s.ReserveA.IsZero() || s.ReserveB.IsZero() {
		return model.SpotPrice{}, ErrPoolNotActive.Wrapf("pool %s has no reserves", p.params.PoolID)
	}
	one := fixed.NewAmount(1)
	bPerA, err := fixed.MulDiv(s.ReserveB, one, s.ReserveA)
	if err != nil {
		return model.SpotPrice{}, err
	}
	aPerB, err := fixed.MulDiv(s.ReserveA, one, s.ReserveB)
	if err != nil {
		return model.SpotPrice{}, err
	}
	return model.SpotPrice{
		PoolID:  p.params.PoolID,
		SymbolA: p.params.SymbolA,
		SymbolB: p.params.SymbolB,
		BPerA:   bPerA.String(),
		APerB:   aPerB.String(),
	}, nil
}

// record exports the pool in state s for persistence.
func (p *Pool) record(s PoolState) model.PoolRecord {
	return model.PoolRecord{
		PoolID:              p.params.PoolID,
		SymbolA:             p.params.SymbolA,
		SymbolB:             p.params.SymbolB,
		FeeBps:              p.params.FeeBps,
		ProtocolFeeShareBps: p.params.ProtocolFeeShareBps,
		ProtocolFeeReceiver: p.params.ProtocolFeeReceiver,
		MaxInBps:            p.params.MaxInBps,
		MaxOutBps:           p.params.MaxOutBps,
		MaxTTL:              model.Duration(p.params.MaxTTL),
		ReserveA:            s.ReserveA,
		ReserveB:            s.ReserveB,
		TotalLPSupply:       s.TotalLPSupply,
		Status:              s.Status.String(),
	}
}

// poolFromRecord rebuilds a pool, rejecting states that break the pool invariants.
func poolFromRecord(rec model.PoolRecord) (*Pool, error) {
	p, err := NewPool(PoolParams{
		PoolID:              rec.PoolID,
		SymbolA:             rec.SymbolA,
		SymbolB:             rec.SymbolB,
		FeeBps:              rec.FeeBps,
		ProtocolFeeShareBps: rec.ProtocolFeeShareBps,
		ProtocolFeeReceiver: rec.ProtocolFeeReceiver,
		MaxInBps:            rec.MaxInBps,
		MaxOutBps:           rec.MaxOutBps,
		MaxTTL:              time.Duration(rec.MaxTTL),
	})
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(rec.Status)
	if err != nil {
		return nil, err
	}
	empty := rec.ReserveA.IsZero() && rec.ReserveB.IsZero()
	switch {
	case status == StatusUninitialized && !(empty && rec.TotalLPSupply.IsZero()):
		return nil, ErrInvalidParams.Wrapf("uninitialized pool %s carries reserves", rec.PoolID)
	case rec.TotalLPSupply.IsZero() != empty:
		return nil, ErrInvalidParams.Wrapf("pool %s supply %s with reserves %s/%s", rec.PoolID, rec.TotalLPSupply, rec.ReserveA, rec.ReserveB)
	case !empty && (rec.ReserveA.IsZero() || rec.ReserveB.IsZero()):
		return nil, ErrInvalidParams.Wrapf("pool %s has a single empty reserve", rec.PoolID)
	}
	p.state = PoolState{
		ReserveA:      rec.ReserveA,
		ReserveB:      rec.ReserveB,
		TotalLPSupply: rec.TotalLPSupply,
		Status:        status,
	}
	return p, nil
}
