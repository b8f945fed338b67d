// Package amm implements a constant-product market maker: pools, liquidity,
// two-phase swaps and protocol fee accrual.
package amm

import (
	"context"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

// Sink receives committed receipts and liquidity events. A sink failure is
// logged and never rolls back a committed operation.
type Sink interface {
	PutReceipts(ctx context.Context, receipts []model.Receipt) error
	PutLiquidityEvents(ctx context.Context, events []model.LiquidityEvent) error
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Clock  Clock
	Logger *zap.Logger
	Sink   Sink
	Impact ImpactThresholds
}

// Engine routes operations to pools and keeps the books that live outside
// pool state: LP positions, pending swap requests and protocol fees.
type Engine struct {
	registry  *Registry
	positions *PositionBook
	fees      *ProtocolFeeLedger
	pending   *pendingBook
	clock     Clock
	sink      Sink
	impact    ImpactThresholds
	logger    *zap.Logger
}

func NewEngine(registry *Registry, opts Options) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Impact == (ImpactThresholds{}) {
		opts.Impact = DefaultImpactThresholds
	}
	return &Engine{
		registry:  registry,
		positions: NewPositionBook(),
		fees:      NewProtocolFeeLedger(),
		pending:   newPendingBook(),
		clock:     opts.Clock,
		sink:      opts.Sink,
		impact:    opts.Impact,
		logger:    opts.Logger,
	}
}

// Registry returns the pool directory the engine routes through.
func (e *Engine) Registry() *Registry { return e.registry }

// CreatePool registers a new, uninitialized pool.
func (e *Engine) CreatePool(ctx context.Context, params PoolParams) (model.PoolSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.PoolSnapshot{}, err
	}
	pool, err := NewPool(params)
	if err != nil {
		return model.PoolSnapshot{}, e.reject("create pool", params.PoolID, err)
	}
	if err := e.registry.Register(pool); err != nil {
		return model.PoolSnapshot{}, e.reject("create pool", params.PoolID, err)
	}

	e.logger.Info("pool created",
		zap.String("pool", params.PoolID),
		zap.String("symbol_a", params.SymbolA),
		zap.String("symbol_b", params.SymbolB),
		zap.Uint32("fee_bps", params.FeeBps),
		zap.Uint32("protocol_share_bps", params.ProtocolFeeShareBps),
		zap.Duration("max_ttl", params.MaxTTL),
	)
	return pool.View(), nil
}

// AddLiquidity deposits into a pool and credits the minted LP tokens to the provider.
func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (model.LiquidityEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.LiquidityEvent{}, err
	}
	if p.Provider == "" {
		return model.LiquidityEvent{}, e.reject("add liquidity", p.PoolID, ErrInvalidParams.Wrap("provider is required"))
	}
	if !p.AmountA.IsPositive() || !p.AmountB.IsPositive() {
		return model.LiquidityEvent{}, e.reject("add liquidity", p.PoolID, ErrInvalidAmount.Wrapf("amounts %s/%s must be positive", p.AmountA, p.AmountB))
	}
	now := e.clock.Now()
	if !p.Deadline.IsZero() {
		if err := ValidateDeadline(now, p.Deadline); err != nil {
			return model.LiquidityEvent{}, e.reject("add liquidity", p.PoolID, err)
		}
	}
	pool, err := e.registry.Get(p.PoolID)
	if err != nil {
		return model.LiquidityEvent{}, e.reject("add liquidity", p.PoolID, err)
	}

	var res addResult
	_, after, err := pool.update(func(s PoolState) (PoolState, func(), error) {
		r, err := computeAdd(s, p.AmountA, p.AmountB)
		if err != nil {
			return PoolState{}, nil, err
		}
		if r.lp.LT(p.MinLPTokens) {
			return PoolState{}, nil, ErrSlippageExceeded.Wrapf("minted %s below minimum %s", r.lp, p.MinLPTokens)
		}
		bal, err := e.positions.Balance(p.Provider, p.PoolID).Add(r.lp)
		if err != nil {
			return PoolState{}, nil, err
		}
		res = r
		return r.next, func() { e.positions.set(p.Provider, p.PoolID, bal) }, nil
	})
	if err != nil {
		return model.LiquidityEvent{}, e.reject("add liquidity", p.PoolID, err)
	}

	event := model.LiquidityEvent{
		PoolID:        p.PoolID,
		Provider:      p.Provider,
		Action:        model.LiquidityAdd,
		AmountA:       res.amountA,
		AmountB:       res.amountB,
		LPTokens:      res.lp,
		ReserveA:      after.ReserveA,
		ReserveB:      after.ReserveB,
		TotalLPSupply: after.TotalLPSupply,
		Timestamp:     now,
	}
	e.logger.Info("liquidity added",
		zap.String("pool", p.PoolID),
		zap.String("provider", p.Provider),
		zap.Stringer("amount_a", res.amountA),
		zap.Stringer("amount_b", res.amountB),
		zap.Stringer("lp_minted", res.lp),
	)
	e.publishLiquidity(ctx, event)
	return event, nil
}

// RemoveLiquidity burns LP tokens from the provider's position and pays out
// the proportional reserves.
func (e *Engine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (model.LiquidityEvent, error) {
	if err := ctx.Err(); err != nil {
		return model.LiquidityEvent{}, err
	}
	if p.Provider == "" {
		return model.LiquidityEvent{}, e.reject("remove liquidity", p.PoolID, ErrInvalidParams.Wrap("provider is required"))
	}
	now := e.clock.Now()
	if !p.Deadline.IsZero() {
		if err := ValidateDeadline(now, p.Deadline); err != nil {
			return model.LiquidityEvent{}, e.reject("remove liquidity", p.PoolID, err)
		}
	}
	pool, err := e.registry.Get(p.PoolID)
	if err != nil {
		return model.LiquidityEvent{}, e.reject("remove liquidity", p.PoolID, err)
	}

	var res removeResult
	_, after, err := pool.update(func(s PoolState) (PoolState, func(), error) {
		held := e.positions.Balance(p.Provider, p.PoolID)
		bal, err := held.Sub(p.LPAmount)
		if err != nil {
			return PoolState{}, nil, ErrInsufficientLPBalance.Wrapf("%s holds %s, requested %s", p.Provider, held, p.LPAmount)
		}
		r, err := computeRemove(s, p.LPAmount)
		if err != nil {
			return PoolState{}, nil, err
		}
		if r.amountA.LT(p.MinAmountA) || r.amountB.LT(p.MinAmountB) {
			return PoolState{}, nil, ErrSlippageExceeded.Wrapf("payout %s/%s below minimum %s/%s", r.amountA, r.amountB, p.MinAmountA, p.MinAmountB)
		}
		res = r
		return r.next, func() { e.positions.set(p.Provider, p.PoolID, bal) }, nil
	})
	if err != nil {
		return model.LiquidityEvent{}, e.reject("remove liquidity", p.PoolID, err)
	}

	event := model.LiquidityEvent{
		PoolID:        p.PoolID,
		Provider:      p.Provider,
		Action:        model.LiquidityRemove,
		AmountA:       res.amountA,
		AmountB:       res.amountB,
		LPTokens:      p.LPAmount,
		ReserveA:      after.ReserveA,
		ReserveB:      after.ReserveB,
		TotalLPSupply: after.TotalLPSupply,
		Timestamp:     now,
	}
	e.logger.Info("liquidity removed",
		zap.String("pool", p.PoolID),
		zap.String("provider", p.Provider),
		zap.Stringer("amount_a", res.amountA),
		zap.Stringer("amount_b", res.amountB),
		zap.Stringer("lp_burned", p.LPAmount),
	)
	e.publishLiquidity(ctx, event)
	return event, nil
}

// Quote prices a trade against the current reserves and registers the
// resulting request for a later Execute. Pool state is not touched.
func (e *Engine) Quote(ctx context.Context, q QuoteParams) (model.SwapRequest, model.SwapQuote, error) {
	if err := ctx.Err(); err != nil {
		return model.SwapRequest{}, model.SwapQuote{}, err
	}
	now := e.clock.Now()
	if expired := e.pending.expire(now); len(expired) > 0 {
		e.logger.Debug("expired swap requests pruned", zap.Int("count", len(expired)))
	}
	if q.Requester == "" {
		return model.SwapRequest{}, model.SwapQuote{}, e.reject("quote", q.PoolID, ErrInvalidParams.Wrap("requester is required"))
	}
	pool, err := e.registry.Get(q.PoolID)
	if err != nil {
		return model.SwapRequest{}, model.SwapQuote{}, e.reject("quote", q.PoolID, err)
	}
	params := pool.Params()
	dir, err := params.Direction(q.SymbolIn)
	if err != nil {
		return model.SwapRequest{}, model.SwapQuote{}, e.reject("quote", q.PoolID, err)
	}

	r, err := computeSwap(pool.Snapshot(), params, dir, q.AmountIn, e.impact)
	if err != nil {
		return model.SwapRequest{}, model.SwapQuote{}, e.reject("quote", q.PoolID, err)
	}

	symbolIn, symbolOut := params.symbols(dir)
	req := model.SwapRequest{
		ID:           uuid.NewString(),
		PoolID:       q.PoolID,
		SymbolIn:     symbolIn,
		SymbolOut:    symbolOut,
		AmountIn:     q.AmountIn,
		MinAmountOut: q.MinAmountOut,
		Requester:    q.Requester,
		CreatedAt:    now,
		ExpiresAt:    now.Add(params.MaxTTL),
	}
	if err := e.pending.add(req); err != nil {
		return model.SwapRequest{}, model.SwapQuote{}, e.reject("quote", q.PoolID, err)
	}

	quote := model.SwapQuote{
		AmountOut:        r.amountOut,
		AmountInAfterFee: r.fee.AmountInAfterFee,
		TotalFee:         r.fee.Total,
		LPFee:            r.fee.LP,
		ProtocolFee:      r.fee.Protocol,
		PriceImpactBps:   r.priceImpactBps,
		ImpactClass:      string(r.impact),
	}
	e.logger.Debug("swap quoted",
		zap.String("pool", q.PoolID),
		zap.String("request", req.ID),
		zap.Stringer("amount_in", q.AmountIn),
		zap.Stringer("amount_out", r.amountOut),
		zap.Time("expires_at", req.ExpiresAt),
	)
	return req, quote, nil
}

// Execute consumes a pending request and settles it against the pool's
// current reserves. An expired request is discarded; on any other failure the
// request stays pending and can be retried or cancelled.
func (e *Engine) Execute(ctx context.Context, req model.SwapRequest) (model.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return model.Receipt{}, err
	}
	stored, ok := e.pending.take(req.ID)
	if !ok {
		return model.Receipt{}, e.reject("execute", req.PoolID, ErrRequestNotFound.Wrapf("request %s", req.ID))
	}
	if !sameRequest(stored, req) {
		e.pending.putBack(stored)
		return model.Receipt{}, e.reject("execute", req.PoolID, ErrInvalidParams.Wrapf("request %s differs from the quoted request", req.ID))
	}

	now := e.clock.Now()
	if err := ValidateDeadline(now, stored.ExpiresAt); err != nil {
		return model.Receipt{}, e.reject("execute", stored.PoolID, err)
	}

	receipt, err := e.settle(stored, now)
	if err != nil {
		e.pending.putBack(stored)
		return model.Receipt{}, e.reject("execute", stored.PoolID, err)
	}

	e.logger.Info("swap executed",
		zap.String("pool", receipt.PoolID),
		zap.String("request", receipt.RequestID),
		zap.String("requester", receipt.Requester),
		zap.Stringer("amount_in", receipt.AmountIn),
		zap.Stringer("amount_out", receipt.AmountOut),
		zap.Stringer("lp_fee", receipt.LPFee),
		zap.Stringer("protocol_fee", receipt.ProtocolFee),
		zap.Uint64("price_impact_bps", receipt.PriceImpactBps),
	)
	e.publishReceipt(ctx, receipt)
	return receipt, nil
}

func (e *Engine) settle(req model.SwapRequest, now time.Time) (model.Receipt, error) {
	pool, err := e.registry.Get(req.PoolID)
	if err != nil {
		return model.Receipt{}, err
	}
	params := pool.Params()
	dir, err := params.Direction(req.SymbolIn)
	if err != nil {
		return model.Receipt{}, err
	}

	fee := feeKey{params.ProtocolFeeReceiver, params.PoolID, req.SymbolIn}
	var r swapResult
	_, _, err = pool.update(func(s PoolState) (PoolState, func(), error) {
		res, err := computeSwap(s, params, dir, req.AmountIn, e.impact)
		if err != nil {
			return PoolState{}, nil, err
		}
		if err := ValidateSlippage(res.amountOut, req.MinAmountOut); err != nil {
			return PoolState{}, nil, err
		}
		next, err := applySwap(s, dir, res.newReserveIn, res.newReserveOut)
		if err != nil {
			return PoolState{}, nil, err
		}
		if err := e.fees.headroom(fee, res.fee.Protocol); err != nil {
			return PoolState{}, nil, err
		}
		r = res
		return next, func() { e.fees.add(fee, res.fee.Protocol) }, nil
	})
	if err != nil {
		return model.Receipt{}, err
	}

	receipt := model.Receipt{
		PoolID:           req.PoolID,
		RequestID:        req.ID,
		Requester:        req.Requester,
		SymbolIn:         req.SymbolIn,
		SymbolOut:        req.SymbolOut,
		AmountIn:         req.AmountIn,
		AmountOut:        r.amountOut,
		TotalFee:         r.fee.Total,
		LPFee:            r.fee.LP,
		ProtocolFee:      r.fee.Protocol,
		PriceImpactBps:   r.priceImpactBps,
		ImpactClass:      string(r.impact),
		ReserveInBefore:  r.reserveIn,
		ReserveOutBefore: r.reserveOut,
		ReserveInAfter:   r.newReserveIn,
		ReserveOutAfter:  r.newReserveOut,
		ExecutedAt:       now,
	}
	receipt.OutputTokenRef = outputTokenRef(receipt)
	return receipt, nil
}

// outputTokenRef is the Keccak-256 hash of the receipt's identity fields. The
// settlement layer uses it as the claim handle for the output asset.
func outputTokenRef(r model.Receipt) string {
	identity := strings.Join([]string{
		r.PoolID,
		r.RequestID,
		r.Requester,
		r.SymbolOut,
		r.AmountOut.String(),
		r.ExecutedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	return crypto.Keccak256Hash([]byte(identity)).Hex()
}

func sameRequest(a, b model.SwapRequest) bool {
	return a.ID == b.ID &&
		a.PoolID == b.PoolID &&
		a.SymbolIn == b.SymbolIn &&
		a.SymbolOut == b.SymbolOut &&
		a.AmountIn.Equal(b.AmountIn) &&
		a.MinAmountOut.Equal(b.MinAmountOut) &&
		a.Requester == b.Requester &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}

// Cancel drops a pending request.
func (e *Engine) Cancel(ctx context.Context, requestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, ok := e.pending.take(requestID)
	if !ok {
		return e.reject("cancel", "", ErrRequestNotFound.Wrapf("request %s", requestID))
	}
	e.logger.Info("swap request cancelled", zap.String("pool", req.PoolID), zap.String("request", req.ID))
	return nil
}

// PruneExpired discards every pending request whose deadline has passed.
func (e *Engine) PruneExpired(ctx context.Context) []model.SwapRequest {
	expired := e.pending.expire(e.clock.Now())
	if len(expired) > 0 {
		e.logger.Info("expired swap requests pruned", zap.Int("count", len(expired)))
	}
	return expired
}

// Pending lists requests awaiting execution, soonest expiry first.
func (e *Engine) Pending() []model.SwapRequest {
	return e.pending.list()
}

// Pools yields a snapshot of every pool ordered by id.
func (e *Engine) Pools() iter.Seq[model.PoolSnapshot] {
	return e.registry.List()
}

// Pool returns a snapshot of one pool.
func (e *Engine) Pool(poolID string) (model.PoolSnapshot, error) {
	pool, err := e.registry.Get(poolID)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	return pool.View(), nil
}

// SpotPrice returns the marginal price of a pool.
func (e *Engine) SpotPrice(poolID string) (model.SpotPrice, error) {
	pool, err := e.registry.Get(poolID)
	if err != nil {
		return model.SpotPrice{}, err
	}
	return pool.SpotPrice()
}

// Position returns a provider's LP tokens in a pool.
func (e *Engine) Position(provider, poolID string) (model.LiquidityPosition, error) {
	if _, err := e.registry.Get(poolID); err != nil {
		return model.LiquidityPosition{}, err
	}
	return model.LiquidityPosition{
		Provider: provider,
		PoolID:   poolID,
		LPTokens: e.positions.Balance(provider, poolID),
	}, nil
}

// Positions lists every non-zero LP position.
func (e *Engine) Positions() []model.LiquidityPosition {
	return e.positions.Positions()
}

// ProtocolFees lists accrued protocol fees; an empty receiver lists all.
func (e *Engine) ProtocolFees(receiver string) []model.ProtocolFeeBalance {
	return e.fees.Balances(receiver)
}

// WithdrawProtocolFees releases the receiver's accrued fees, optionally for a single pool.
func (e *Engine) WithdrawProtocolFees(ctx context.Context, receiver, poolID string) ([]model.ProtocolFeeBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.fees.Withdraw(receiver, poolID)
	if err != nil {
		return nil, e.reject("withdraw protocol fees", poolID, err)
	}
	e.logger.Info("protocol fees withdrawn", zap.String("receiver", receiver), zap.Int("balances", len(out)))
	return out, nil
}

// Export captures the engine for persistence. Every pool is read-locked for
// the whole capture, so positions and fees match the exported reserves.
func (e *Engine) Export() model.EngineState {
	pools := e.registry.sorted()
	for _, p := range pools {
		p.mu.RLock()
	}
	records := make([]model.PoolRecord, 0, len(pools))
	for _, p := range pools {
		records = append(records, p.record(p.state))
	}
	state := model.EngineState{
		Version:      model.StateVersion,
		Pools:        records,
		Positions:    e.positions.Positions(),
		ProtocolFees: e.fees.Balances(""),
		Pending:      e.pending.list(),
		UpdatedAt:    e.clock.Now(),
	}
	for _, p := range slices.Backward(pools) {
		p.mu.RUnlock()
	}
	return state
}

// Restore loads a previously exported state into an empty engine. Positions
// must add up to each pool's LP supply.
func (e *Engine) Restore(state model.EngineState) error {
	if e.registry.Len() != 0 || e.pending.len() != 0 {
		return ErrInvalidParams.Wrap("restore into a non-empty engine")
	}
	if err := state.Validate(); err != nil {
		return ErrInvalidParams.Wrap(err.Error())
	}

	registry := NewRegistry()
	for _, rec := range state.Pools {
		pool, err := poolFromRecord(rec)
		if err != nil {
			return err
		}
		if err := registry.Register(pool); err != nil {
			return err
		}
	}

	positions := NewPositionBook()
	if err := positions.restore(state.Positions); err != nil {
		return err
	}
	supplies := make(map[string]fixed.Amount)
	for _, pos := range state.Positions {
		if _, err := registry.Get(pos.PoolID); err != nil {
			return ErrInvalidParams.Wrapf("position of %s in unknown pool %s", pos.Provider, pos.PoolID)
		}
		sum, err := supplies[pos.PoolID].Add(pos.LPTokens)
		if err != nil {
			return err
		}
		supplies[pos.PoolID] = sum
	}
	for _, p := range registry.sorted() {
		if supply := p.Snapshot().TotalLPSupply; !supply.Equal(supplies[p.ID()]) {
			return ErrInvalidParams.Wrapf("pool %s supply %s but positions sum to %s", p.ID(), supply, supplies[p.ID()])
		}
	}

	for _, b := range state.ProtocolFees {
		if _, err := registry.Get(b.PoolID); err != nil {
			return ErrInvalidParams.Wrapf("protocol fee of %s in unknown pool %s", b.Receiver, b.PoolID)
		}
	}
	fees := NewProtocolFeeLedger()
	if err := fees.restore(state.ProtocolFees); err != nil {
		return err
	}

	pending := newPendingBook()
	for _, req := range state.Pending {
		if _, err := registry.Get(req.PoolID); err != nil {
			return ErrInvalidParams.Wrapf("request %s in unknown pool %s", req.ID, req.PoolID)
		}
		if err := pending.add(req); err != nil {
			return err
		}
	}

	registry.mu.Lock()
	pools := registry.pools
	registry.mu.Unlock()
	e.registry.mu.Lock()
	e.registry.pools = pools
	e.registry.mu.Unlock()
	e.positions = positions
	e.fees = fees
	e.pending = pending

	e.logger.Info("engine state restored",
		zap.Int("pools", len(state.Pools)),
		zap.Int("positions", len(state.Positions)),
		zap.Int("pending", len(state.Pending)),
	)
	return nil
}

func (e *Engine) publishReceipt(ctx context.Context, r model.Receipt) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PutReceipts(ctx, []model.Receipt{r}); err != nil {
		e.logger.Warn("receipt sink failed", zap.String("request", r.RequestID), zap.Error(err))
	}
}

func (e *Engine) publishLiquidity(ctx context.Context, ev model.LiquidityEvent) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PutLiquidityEvents(ctx, []model.LiquidityEvent{ev}); err != nil {
		e.logger.Warn("liquidity sink failed", zap.String("pool", ev.PoolID), zap.Error(err))
	}
}

// reject logs a refused operation at a level matching its class and returns err unchanged.
func (e *Engine) reject(op, poolID string, err error) error {
	class := Classify(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("pool", poolID),
		zap.Stringer("class", class),
		zap.Error(err),
	}
	if class == ClassInvariant {
		e.logger.Error("operation aborted", fields...)
	} else {
		e.logger.Warn("operation rejected", fields...)
	}
	return err
}
