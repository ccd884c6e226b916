package callstatus

import (
	"context"
	"sync"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// MemoryStore is the in-process variant used by tests and development.
type MemoryStore struct {
	mu      sync.Mutex
	results map[string]contractx.CallResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]contractx.CallResult)}
}

func (s *MemoryStore) Upsert(_ context.Context, result contractx.CallResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.CallSID] = result
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, callSID string) (*contractx.CallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.results[callSID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return &result, nil
}
