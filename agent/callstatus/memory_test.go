package callstatus

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

func TestUpsertAndLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Lookup(ctx, "CA123"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("err = %v, want ErrResultNotFound", err)
	}

	_ = store.Upsert(ctx, contractx.CallResult{CallSID: "CA123", RMANumber: "CR99"})

	result, err := store.Lookup(ctx, "CA123")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.RMANumber != "CR99" {
		t.Fatalf("rma number = %q, want CR99", result.RMANumber)
	}

	// A later webhook for the same call replaces the row.
	_ = store.Upsert(ctx, contractx.CallResult{CallSID: "CA123", RMANumber: "CR99", TranscriptURL: "https://example.com/t"})
	result, _ = store.Lookup(ctx, "CA123")
	if result.TranscriptURL != "https://example.com/t" {
		t.Fatalf("transcript url = %q", result.TranscriptURL)
	}
}
