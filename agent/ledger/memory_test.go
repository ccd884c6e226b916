package ledger

import (
	"context"
	"testing"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

func TestMemoryStoreOrdersByInsertion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, agent := range []string{contractx.AgentFormBot, contractx.AgentCallBot, contractx.AgentFailsafe} {
		if err := store.Append(ctx, contractx.Action{
			AgentID: agent,
			Type:    contractx.ActionToolUse,
			RMAID:   "rma-1",
			Status:  contractx.StatusSuccess,
		}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	entries, err := store.Query(ctx, "rma-1")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.ID != int64(i+1) {
			t.Errorf("entries[%d].ID = %d, want %d", i, entry.ID, i+1)
		}
		if entry.Timestamp.IsZero() {
			t.Errorf("entries[%d] has no timestamp", i)
		}
	}
	if entries[0].AgentID != contractx.AgentFormBot || entries[2].AgentID != contractx.AgentFailsafe {
		t.Fatalf("entries out of insertion order: %v", entries)
	}
}

func TestMemoryStoreIsolatesRMAs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Append(ctx, contractx.Action{AgentID: contractx.AgentFormBot, Type: contractx.ActionToolUse, RMAID: "rma-a"})
	_ = store.Append(ctx, contractx.Action{AgentID: contractx.AgentCallBot, Type: contractx.ActionToolUse, RMAID: "rma-b"})
	_ = store.Append(ctx, contractx.Action{AgentID: contractx.AgentEcho, Type: contractx.ActionToolUse, RMAID: "rma-a"})

	entries, err := store.Query(ctx, "rma-a")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.RMAID != "rma-a" {
			t.Fatalf("query leaked entry for %q", entry.RMAID)
		}
	}

	empty, err := store.Query(ctx, "rma-missing")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("query for unknown rma returned %d entries", len(empty))
	}
}
