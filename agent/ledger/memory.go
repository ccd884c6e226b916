package ledger

import (
	"context"
	"sync"
	"time"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// MemoryStore keeps the ledger in process memory. Used by tests and
// single-node development setups.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []contractx.Action
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Append(_ context.Context, action contractx.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	action.ID = s.nextID
	s.nextID++
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now().UTC()
	}
	s.entries = append(s.entries, action)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, rmaID string) ([]contractx.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []contractx.Action
	for _, entry := range s.entries {
		if entry.RMAID == rmaID {
			out = append(out, entry)
		}
	}
	return out, nil
}
