package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pools, receipts, liquidity events
// and engine state.
type Store struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewStore(ctx context.Context, dsn string, retry RetryPolicy) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := withRetry(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, retry: retry}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return withRetry(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, schema)
		return err
	})
}

// UpsertPools inserts or updates pool snapshots.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolSnapshot) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, symbol_a, symbol_b, fee_rate, reserve_a, reserve_b, total_lp_supply, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				total_lp_supply = EXCLUDED.total_lp_supply,
				status = EXCLUDED.status,
				updated_at = now()
		`,
			p.PoolID,
			p.SymbolA,
			p.SymbolB,
			p.FeeRate,
			numeric(p.ReserveA),
			numeric(p.ReserveB),
			numeric(p.TotalLPSupply),
			p.Status,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutReceipts inserts receipts. A receipt that is already stored is skipped.
func (s *Store) PutReceipts(ctx context.Context, receipts []model.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range receipts {
		batch.Queue(`
			INSERT INTO swap_receipts (
				request_id, pool_id, requester, symbol_in, symbol_out, amount_in, amount_out,
				total_fee, lp_fee, protocol_fee, price_impact_bps, impact_class,
				reserve_in_before, reserve_out_before, reserve_in_after, reserve_out_after,
				output_token_ref, executed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (request_id) DO NOTHING
		`,
			r.RequestID,
			r.PoolID,
			r.Requester,
			r.SymbolIn,
			r.SymbolOut,
			numeric(r.AmountIn),
			numeric(r.AmountOut),
			numeric(r.TotalFee),
			numeric(r.LPFee),
			numeric(r.ProtocolFee),
			int64(r.PriceImpactBps),
			r.ImpactClass,
			numeric(r.ReserveInBefore),
			numeric(r.ReserveOutBefore),
			numeric(r.ReserveInAfter),
			numeric(r.ReserveOutAfter),
			r.OutputTokenRef,
			r.ExecutedAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutLiquidityEvents appends liquidity events.
func (s *Store) PutLiquidityEvents(ctx context.Context, events []model.LiquidityEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO liquidity_events (
				pool_id, provider, action, amount_a, amount_b, lp_tokens,
				reserve_a, reserve_b, total_lp_supply, ts
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			ev.PoolID,
			ev.Provider,
			string(ev.Action),
			numeric(ev.AmountA),
			numeric(ev.AmountB),
			numeric(ev.LPTokens),
			numeric(ev.ReserveA),
			numeric(ev.ReserveB),
			numeric(ev.TotalLPSupply),
			ev.Timestamp,
		)
	}
	// Liquidity events have no natural key, so a retried batch could
	// duplicate rows. Send it once.
	return s.sendBatchOnce(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts, symbol_a, symbol_b,
				swap_count, liquidity_events, volume_a, volume_b, lp_fee_a, lp_fee_b,
				protocol_fee_a, protocol_fee_b, reserve_a, reserve_b, fee_rate, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				liquidity_events = EXCLUDED.liquidity_events,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				lp_fee_a = EXCLUDED.lp_fee_a,
				lp_fee_b = EXCLUDED.lp_fee_b,
				protocol_fee_a = EXCLUDED.protocol_fee_a,
				protocol_fee_b = EXCLUDED.protocol_fee_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				fee_rate = EXCLUDED.fee_rate,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			m.SymbolA,
			m.SymbolB,
			int64(m.SwapCount),
			int64(m.LiquidityEvents),
			numeric(m.VolumeA),
			numeric(m.VolumeB),
			numeric(m.LPFeeA),
			numeric(m.LPFeeB),
			numeric(m.ProtocolFeeA),
			numeric(m.ProtocolFeeB),
			numeric(m.ReserveA),
			numeric(m.ReserveB),
			m.FeeRate,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns the engine state saved under name.
func (s *Store) LoadState(ctx context.Context, name string) (model.EngineState, bool, error) {
	if name == "" {
		return model.EngineState{}, false, fmt.Errorf("state name required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT state FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, err
	}
	state, err := model.DecodeStrict[model.EngineState](data)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("parse engine state: %w", err)
	}
	return state, true, nil
}

// LockState takes a session-level advisory lock for the state saved under
// name and holds it on a dedicated connection until the returned function
// is called. Concurrent holders of the same name block in LockState.
func (s *Store) LockState(ctx context.Context, name string) (func() error, error) {
	if name == "" {
		return nil, fmt.Errorf("state name required")
	}
	key := "engine_state:" + name
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock conn: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock state %s: %w", name, err)
	}

	return func() error {
		defer conn.Release()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			// Closing the session drops the lock with it.
			conn.Conn().Close(ctx)
			return fmt.Errorf("unlock state %s: %w", name, err)
		}
		return nil
	}, nil
}

// SaveState upserts the engine state under name.
func (s *Store) SaveState(ctx context.Context, name string, state model.EngineState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal engine state: %w", err)
	}
	return withRetry(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO engine_state (name, state, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE
			SET state = EXCLUDED.state, updated_at = now()
		`, name, data)
		return err
	})
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	return withRetry(ctx, s.retry, func(ctx context.Context) error {
		return s.sendBatchOnce(ctx, batch)
	})
}

func (s *Store) sendBatchOnce(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// numeric encodes an amount exactly as a NUMERIC with Scale fractional digits.
func numeric(a fixed.Amount) pgtype.Numeric {
	return pgtype.Numeric{Int: a.Raw(), Exp: -fixed.Scale, Valid: true}
}
