package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. Suitable for tests
// and single-process runs without durability requirements.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*Checkpoint // append-ordered per thread
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]*Checkpoint)}
}

func (s *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	prepare(cp)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cp
	s.threads[cp.ThreadID] = append(s.threads[cp.ThreadID], &stored)
	return nil
}

func (s *MemoryStore) LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.threads[threadID]
	if len(cps) == 0 {
		return nil, ErrNotFound
	}
	latest := cps[0]
	for _, cp := range cps[1:] {
		if cp.Step > latest.Step {
			latest = cp
		}
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.threads[threadID]
	out := make([]*Checkpoint, 0, len(cps))
	for i := len(cps) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *cps[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
