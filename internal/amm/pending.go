package amm

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"ammEngine/internal/model"
)

// pendingBook holds quoted swap requests until they are executed, cancelled
// or expire. Taking a request removes it, so each one executes at most once.
type pendingBook struct {
	l sync.RWMutex
	m map[string]model.SwapRequest
}

func newPendingBook() *pendingBook {
	return &pendingBook{m: make(map[string]model.SwapRequest)}
}

func (b *pendingBook) add(req model.SwapRequest) error {
	b.l.Lock()
	defer b.l.Unlock()

	if _, ok := b.m[req.ID]; ok {
		return ErrDuplicateID.Wrapf("swap request %s", req.ID)
	}
	b.m[req.ID] = req
	return nil
}

func (b *pendingBook) take(id string) (model.SwapRequest, bool) {
	b.l.Lock()
	defer b.l.Unlock()

	req, ok := b.m[id]
	if !ok {
		return model.SwapRequest{}, false
	}
	delete(b.m, id)
	return req, true
}

// putBack returns a taken request after an execution that did not consume it.
func (b *pendingBook) putBack(req model.SwapRequest) {
	b.l.Lock()
	defer b.l.Unlock()

	b.m[req.ID] = req
}

// expire drops every request with expiresAt strictly before now.
func (b *pendingBook) expire(now time.Time) []model.SwapRequest {
	b.l.Lock()
	expired := []model.SwapRequest{}
	for id, req := range b.m {
		if now.After(req.ExpiresAt) {
			delete(b.m, id)
			expired = append(expired, req)
		}
	}
	b.l.Unlock()

	sortRequests(expired)
	return expired
}

func (b *pendingBook) list() []model.SwapRequest {
	b.l.RLock()
	out := make([]model.SwapRequest, 0, len(b.m))
	for _, req := range b.m {
		out = append(out, req)
	}
	b.l.RUnlock()

	sortRequests(out)
	return out
}

func (b *pendingBook) len() int {
	b.l.RLock()
	defer b.l.RUnlock()

	return len(b.m)
}

func sortRequests(reqs []model.SwapRequest) {
	slices.SortFunc(reqs, func(x, y model.SwapRequest) int {
		if c := x.ExpiresAt.Compare(y.ExpiresAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
}
