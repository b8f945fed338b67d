package amm

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

type feeKey struct {
	receiver string
	poolID   string
	symbol   string
}

// ProtocolFeeLedger accrues the protocol share of swap fees per receiver,
// pool and asset until the receiver withdraws it.
type ProtocolFeeLedger struct {
	mu       sync.Mutex
	balances map[feeKey]fixed.Amount
}

func NewProtocolFeeLedger() *ProtocolFeeLedger {
	return &ProtocolFeeLedger{balances: make(map[feeKey]fixed.Amount)}
}

func (l *ProtocolFeeLedger) accrue(receiver, poolID, symbol string, amount fixed.Amount) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := feeKey{receiver, poolID, symbol}
	next, err := l.balances[key].Add(amount)
	if err != nil {
		return err
	}
	l.balances[key] = next
	return nil
}

// headroom fails when accruing amount would overflow the balance.
func (l *ProtocolFeeLedger) headroom(key feeKey, amount fixed.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.balances[key].Add(amount)
	return err
}

// add accrues an amount already passed through headroom under the pool lock.
// Between the two calls only Withdraw can touch the balance, and it lowers it.
func (l *ProtocolFeeLedger) add(key feeKey, amount fixed.Amount) {
	if amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := l.balances[key].Add(amount)
	if err != nil {
		panic(fmt.Sprintf("protocol fee %s/%s/%s: %v", key.receiver, key.poolID, key.symbol, err))
	}
	l.balances[key] = next
}

// Balances lists the receiver's accrued fees. An empty receiver lists all.
func (l *ProtocolFeeLedger) Balances(receiver string) []model.ProtocolFeeBalance {
	l.mu.Lock()
	out := make([]model.ProtocolFeeBalance, 0, len(l.balances))
	for key, amt := range l.balances {
		if receiver != "" && key.receiver != receiver {
			continue
		}
		out = append(out, model.ProtocolFeeBalance{Receiver: key.receiver, PoolID: key.poolID, Symbol: key.symbol, Amount: amt})
	}
	l.mu.Unlock()

	sortFeeBalances(out)
	return out
}

// Withdraw zeroes and returns the receiver's balances, limited to one pool
// when poolID is set.
func (l *ProtocolFeeLedger) Withdraw(receiver, poolID string) ([]model.ProtocolFeeBalance, error) {
	if receiver == "" {
		return nil, ErrInvalidParams.Wrap("receiver is required")
	}
	l.mu.Lock()
	out := []model.ProtocolFeeBalance{}
	for key, amt := range l.balances {
		if key.receiver != receiver || (poolID != "" && key.poolID != poolID) {
			continue
		}
		out = append(out, model.ProtocolFeeBalance{Receiver: key.receiver, PoolID: key.poolID, Symbol: key.symbol, Amount: amt})
		delete(l.balances, key)
	}
	l.mu.Unlock()

	if len(out) == 0 {
		return nil, ErrNotFound.Wrapf("no protocol fees for %s", receiver)
	}
	sortFeeBalances(out)
	return out, nil
}

func (l *ProtocolFeeLedger) restore(balances []model.ProtocolFeeBalance) error {
	for _, b := range balances {
		if err := l.accrue(b.Receiver, b.PoolID, b.Symbol, b.Amount); err != nil {
			return err
		}
	}
	return nil
}

func sortFeeBalances(out []model.ProtocolFeeBalance) {
	slices.SortFunc(out, func(x, y model.ProtocolFeeBalance) int {
		if c := cmp.Compare(x.Receiver, y.Receiver); c != 0 {
			return c
		}
		if c := cmp.Compare(x.PoolID, y.PoolID); c != 0 {
			return c
		}
		return cmp.Compare(x.Symbol, y.Symbol)
	})
}
