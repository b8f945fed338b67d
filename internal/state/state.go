// Package state persists engine state between process runs.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"ammEngine/internal/model"
	"ammEngine/internal/storage/postgres"
)

// Store loads and saves the engine state. A caller that loads, changes and
// saves the state holds Lock across all three steps.
type Store interface {
	Lock(ctx context.Context) (Unlock, error)
	Load(ctx context.Context) (model.EngineState, bool, error)
	Save(ctx context.Context, state model.EngineState) error
}

// Unlock releases a lock taken with Store.Lock.
type Unlock func() error

func noUnlock() error { return nil }

const lockRetryDelay = 20 * time.Millisecond

// FileStore keeps the state in a local JSON file, replaced atomically on save.
type FileStore struct {
	Path string
}

// Lock takes an exclusive flock on "<path>.lock", waiting until ctx is done.
func (s *FileStore) Lock(ctx context.Context) (Unlock, error) {
	if s == nil || s.Path == "" {
		return noUnlock, nil
	}
	if err := ensureDir(s.Path); err != nil {
		return nil, err
	}
	fl := flock.New(s.Path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock state: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock state: %s is held", fl.Path())
	}
	return fl.Unlock, nil
}

func (s *FileStore) Load(ctx context.Context) (model.EngineState, bool, error) {
	if s == nil || s.Path == "" {
		return model.EngineState{}, false, nil
	}
	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return model.EngineState{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("read state: %w", err)
	}
	st, err := model.DecodeStrict[model.EngineState](data)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("parse state: %w", err)
	}
	return st, true, nil
}

func (s *FileStore) Save(ctx context.Context, st model.EngineState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := ensureDir(s.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

// DBStore keeps the state in the engine_state table.
type DBStore struct {
	Store *postgres.Store
	Name  string
}

// Lock takes the Postgres advisory lock for the state name.
func (s *DBStore) Lock(ctx context.Context) (Unlock, error) {
	if s == nil || s.Store == nil {
		return noUnlock, nil
	}
	return s.Store.LockState(ctx, s.Name)
}

func (s *DBStore) Load(ctx context.Context) (model.EngineState, bool, error) {
	if s == nil || s.Store == nil {
		return model.EngineState{}, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStore) Save(ctx context.Context, st model.EngineState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, st)
}
