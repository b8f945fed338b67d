package amm

import (
	"iter"
	"slices"
	"sync"

	"ammEngine/internal/model"
)

// Registry maps pool ids to pools. It is passed explicitly to whoever needs
// pool resolution.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Register adds a pool, failing with ErrDuplicateID if its id is taken.
func (r *Registry) Register(p *Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[p.ID()]; ok {
		return ErrDuplicateID.Wrapf("pool %s", p.ID())
	}
	r.pools[p.ID()] = p
	return nil
}

// Get resolves a pool id.
func (r *Registry) Get(poolID string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[poolID]
	if !ok {
		return nil, ErrNotFound.Wrapf("pool %s", poolID)
	}
	return p, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// List yields a snapshot of every pool ordered by pool id. The sequence is
// lazy and can be ranged over again; each element is a copy taken under that
// pool's read lock.
func (r *Registry) List() iter.Seq[model.PoolSnapshot] {
	return func(yield func(model.PoolSnapshot) bool) {
		for _, p := range r.sorted() {
			if !yield(p.View()) {
				return
			}
		}
	}
}

func (r *Registry) sorted() []*Pool {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	pools := make([]*Pool, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		pools = append(pools, r.pools[id])
	}
	r.mu.RUnlock()
	return pools
}
