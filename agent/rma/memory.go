package rma

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// MemoryStore holds RMA records in process memory for tests and
// development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*contractx.RMARecord
}

func NewMemoryStore(records ...*contractx.RMARecord) *MemoryStore {
	s := &MemoryStore{records: make(map[string]*contractx.RMARecord, len(records))}
	for _, r := range records {
		if r != nil {
			cloned := *r
			s.records[r.ID] = &cloned
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (*contractx.RMARecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrRMANotFound, id)
	}
	cloned := *r
	return &cloned, nil
}

func (s *MemoryStore) SetVendorRMAID(_ context.Context, id string, vendorRMAID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", contractx.ErrRMANotFound, id)
	}
	if r.VendorRMAID != "" {
		return false, nil
	}
	r.VendorRMAID = vendorRMAID
	r.Status = "submitted"
	return true, nil
}

func (s *MemoryStore) SetCallSID(_ context.Context, id string, callSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", contractx.ErrRMANotFound, id)
	}
	r.CallSID = callSID
	return nil
}
