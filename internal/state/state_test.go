package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ammEngine/internal/amm"
	"ammEngine/internal/fixed"
	"ammEngine/internal/model"
)

func sampleState() model.EngineState {
	return model.EngineState{
		Version: model.StateVersion,
		Pools: []model.PoolRecord{{
			PoolID:              "p1",
			SymbolA:             "A",
			SymbolB:             "B",
			FeeBps:              30,
			ProtocolFeeShareBps: 2500,
			ProtocolFeeReceiver: "treasury",
			MaxInBps:            5000,
			MaxOutBps:           5000,
			MaxTTL:              model.Duration(10 * time.Minute),
			ReserveA:            fixed.MustParse("10"),
			ReserveB:            fixed.MustParse("20000"),
			TotalLPSupply:       fixed.MustParse("447.2135954999"),
			Status:              "active",
		}},
		Positions: []model.LiquidityPosition{{Provider: "alice", PoolID: "p1", LPTokens: fixed.MustParse("447.2135954999")}},
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "state.json")}
	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no state")
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")
	store := &FileStore{Path: path}
	ctx := context.Background()

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file should be renamed away, stat err: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got.Pools) != 1 || got.Pools[0].PoolID != "p1" {
		t.Fatalf("unexpected pools: %+v", got.Pools)
	}
	if got.Pools[0].TotalLPSupply.String() != "447.2135954999" {
		t.Fatalf("supply mismatch: %s", got.Pools[0].TotalLPSupply)
	}
	if time.Duration(got.Pools[0].MaxTTL) != 10*time.Minute {
		t.Fatalf("ttl mismatch: %v", time.Duration(got.Pools[0].MaxTTL))
	}
}

func TestFileStoreRejectsMalformedState(t *testing.T) {
	cases := map[string]string{
		"unknown field":   `{"version":1,"pools":[],"bogus":true}`,
		"numeric amount":  `{"version":1,"positions":[{"provider":"a","pool_id":"p","lp_tokens":1.5}]}`,
		"missing pool id": `{"version":1,"pools":[{"symbol_a":"A","symbol_b":"B","status":"active"}]}`,
		"bad version":     `{"version":7}`,
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		if _, _, err := (&FileStore{Path: path}).Load(context.Background()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNilStoresAreNoops(t *testing.T) {
	var fs *FileStore
	if err := fs.Save(context.Background(), sampleState()); err != nil {
		t.Fatalf("nil file store save: %v", err)
	}
	var db *DBStore
	if _, ok, err := db.Load(context.Background()); ok || err != nil {
		t.Fatalf("nil db store load: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreLockExcludes(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "data", "state.json")}
	other := &FileStore{Path: store.Path}

	unlock, err := store.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = other.Lock(ctx)
	require.Error(t, err)

	require.NoError(t, unlock())
	unlockOther, err := other.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlockOther())
}

// seedPendingSwap saves a state holding one funded pool and one quoted request.
func seedPendingSwap(t *testing.T, store Store) model.SwapRequest {
	t.Helper()
	ctx := context.Background()
	e := amm.NewEngine(nil, amm.Options{})
	_, err := e.CreatePool(ctx, amm.PoolParams{
		PoolID:              "p1",
		SymbolA:             "A",
		SymbolB:             "B",
		FeeBps:              30,
		ProtocolFeeShareBps: 2500,
		ProtocolFeeReceiver: "treasury",
		MaxInBps:            5000,
		MaxOutBps:           5000,
		MaxTTL:              10 * time.Minute,
	})
	require.NoError(t, err)
	_, err = e.AddLiquidity(ctx, amm.AddLiquidityParams{
		PoolID:   "p1",
		Provider: "alice",
		AmountA:  fixed.NewAmount(100),
		AmountB:  fixed.NewAmount(1000),
	})
	require.NoError(t, err)
	req, _, err := e.Quote(ctx, amm.QuoteParams{PoolID: "p1", SymbolIn: "A", AmountIn: fixed.NewAmount(1), Requester: "bob"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, e.Export()))
	return req
}

// executeSession is one process run: lock, load, restore, execute, save, unlock.
func executeSession(ctx context.Context, store Store, req model.SwapRequest) error {
	unlock, err := store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	st, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no state")
	}
	e := amm.NewEngine(nil, amm.Options{})
	if err := e.Restore(st); err != nil {
		return err
	}
	_, execErr := e.Execute(ctx, req)
	if err := store.Save(ctx, e.Export()); err != nil {
		return err
	}
	return execErr
}

func TestOverlappingSessionsExecuteOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	req := seedPendingSwap(t, &FileStore{Path: path})

	const sessions = 4
	start := make(chan struct{})
	errs := make([]error, sessions)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = executeSession(context.Background(), &FileStore{Path: path}, req)
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, amm.ErrRequestNotFound)
	}
	require.Equal(t, 1, succeeded)

	st, ok, err := (&FileStore{Path: path}).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, st.Pending)
	require.Equal(t, "100.9992500000", st.Pools[0].ReserveA.String())
}
