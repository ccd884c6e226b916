package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	failsafex "github.com/claimr-app/claimr-mesh/agent/agents/failsafe"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

// scriptedDispatcher returns one scripted outcome per call, in order.
type scriptedDispatcher struct {
	results []dispatchResult
	calls   int
}

type dispatchResult struct {
	vendorRMAID string
	err         error
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, _ *contractx.RMARecord, _ string) (string, error) {
	if d.calls >= len(d.results) {
		return "", errors.New("dispatcher called more times than scripted")
	}
	r := d.results[d.calls]
	d.calls++
	return r.vendorRMAID, r.err
}

type recordingNotifier struct {
	calls []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, _ *contractx.RMARecord, vendorRMAID string) error {
	n.calls = append(n.calls, vendorRMAID)
	return n.err
}

func newOrchestrator(t *testing.T, rmas rmax.Store, ledger ledgerx.Store, dispatcher *scriptedDispatcher, notifier *recordingNotifier) *Orchestrator {
	t.Helper()
	policy, err := failsafex.New(ledger)
	if err != nil {
		t.Fatalf("failsafe.New returned error: %v", err)
	}
	o, err := New(rmas, ledger, dispatcher, policy, notifier)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return o
}

func TestHandleRequestFormSubmission(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-1", Vendor: "qsc", SerialNumber: "SN-1"})
	ledger := ledgerx.NewMemoryStore()
	dispatcher := &scriptedDispatcher{results: []dispatchResult{{vendorRMAID: "Q-1"}}}
	notifier := &recordingNotifier{}

	o := newOrchestrator(t, rmas, ledger, dispatcher, notifier)

	out, err := o.HandleRequest(context.Background(), "rma-1", "")
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	if out.VendorRMAID != "Q-1" || out.Escalated {
		t.Fatalf("output = %+v", out)
	}
	if out.NextHandler != "formbot_qsc" {
		t.Errorf("next handler = %q, want formbot_qsc", out.NextHandler)
	}
	if out.TraceID == "" {
		t.Error("trace id was not minted")
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != "Q-1" {
		t.Fatalf("notifier calls = %v, want [Q-1]", notifier.calls)
	}

	entries, _ := ledger.Query(context.Background(), "rma-1")
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].AgentID != contractx.AgentOrchestrator || entries[0].Data["outcome"] != "captured" {
		t.Fatalf("ledger entry = %+v", entries[0])
	}
}

func TestHandleRequestVoiceVendorRouting(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-2", Vendor: "Crestron"})
	ledger := ledgerx.NewMemoryStore()
	dispatcher := &scriptedDispatcher{results: []dispatchResult{{vendorRMAID: "CR99"}}}
	notifier := &recordingNotifier{}

	o := newOrchestrator(t, rmas, ledger, dispatcher, notifier)

	out, err := o.HandleRequest(context.Background(), "rma-2", "trace-voice")
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	if out.NextHandler != "callbot_crestron" {
		t.Errorf("next handler = %q, want callbot_crestron", out.NextHandler)
	}
	if out.VendorRMAID != "CR99" {
		t.Errorf("vendor rma id = %q, want CR99", out.VendorRMAID)
	}
	if out.TraceID != "trace-voice" {
		t.Errorf("trace id = %q, caller value must survive", out.TraceID)
	}
}

func TestHandleRequestRetriesOnceThenSucceeds(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-3", Vendor: "qsc"})
	ledger := ledgerx.NewMemoryStore()
	dispatcher := &scriptedDispatcher{results: []dispatchResult{
		{err: fmt.Errorf("%w: status=502", contractx.ErrVendorSubmission)},
		{vendorRMAID: "Q-2"},
	}}
	notifier := &recordingNotifier{}

	o := newOrchestrator(t, rmas, ledger, dispatcher, notifier)

	out, err := o.HandleRequest(context.Background(), "rma-3", "trace-3")
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	if out.Escalated || out.VendorRMAID != "Q-2" {
		t.Fatalf("output = %+v", out)
	}
	if dispatcher.calls != 2 {
		t.Fatalf("dispatch calls = %d, want 2", dispatcher.calls)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("notifier calls = %v, want one", notifier.calls)
	}

	// One failsafe retry entry plus the orchestrator's captured entry.
	entries, _ := ledger.Query(context.Background(), "rma-3")
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].AgentID != contractx.AgentFailsafe || entries[0].Data["action"] != "retry_attempt" {
		t.Fatalf("first entry = %+v", entries[0])
	}
}

func TestHandleRequestEscalatesAfterSecondFailure(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-4", Vendor: "crestron"})
	ledger := ledgerx.NewMemoryStore()
	timeout := fmt.Errorf("%w: call_sid=CA1 attempts=12", contractx.ErrCaptureTimeout)
	dispatcher := &scriptedDispatcher{results: []dispatchResult{
		{err: timeout},
		{err: timeout},
	}}
	notifier := &recordingNotifier{}

	o := newOrchestrator(t, rmas, ledger, dispatcher, notifier)

	out, err := o.HandleRequest(context.Background(), "rma-4", "trace-4")
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	if !out.Escalated {
		t.Fatal("workflow should end escalated")
	}
	if out.VendorRMAID != "" {
		t.Fatalf("vendor rma id = %q, want empty", out.VendorRMAID)
	}
	if dispatcher.calls != 2 {
		t.Fatalf("dispatch calls = %d, want exactly 2", dispatcher.calls)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("notifier calls = %v, escalation must not notify", notifier.calls)
	}

	entries, _ := ledger.Query(context.Background(), "rma-4")
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Data["action"] != "retry_attempt" || entries[1].Data["action"] != "escalation" {
		t.Fatalf("failsafe entries = %+v", entries[:2])
	}
	last := entries[2]
	if last.AgentID != contractx.AgentOrchestrator || last.Data["outcome"] != "escalated" {
		t.Fatalf("final entry = %+v", last)
	}
	if last.Status != contractx.StatusFailure {
		t.Errorf("final entry status = %q, want failure", last.Status)
	}
}

func TestHandleRequestUnsupportedVendorIsTerminal(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-5", Vendor: "unknownvendor"})
	ledger := ledgerx.NewMemoryStore()
	dispatcher := &scriptedDispatcher{results: []dispatchResult{
		{err: fmt.Errorf("%w: unknownvendor", contractx.ErrUnsupportedVendor)},
	}}
	notifier := &recordingNotifier{}

	o := newOrchestrator(t, rmas, ledger, dispatcher, notifier)

	_, err := o.HandleRequest(context.Background(), "rma-5", "trace-5")
	if !errors.Is(err, contractx.ErrUnsupportedVendor) {
		t.Fatalf("err = %v, want ErrUnsupportedVendor", err)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("dispatch calls = %d, terminal errors are not retried", dispatcher.calls)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("notifier calls = %v, want none", notifier.calls)
	}

	// The failsafe was never consulted, so the ledger has no retry or
	// escalation entries.
	entries, _ := ledger.Query(context.Background(), "rma-5")
	for _, e := range entries {
		if e.AgentID == contractx.AgentFailsafe {
			t.Fatalf("failsafe entry on terminal error: %+v", e)
		}
	}
}

func TestHandleRequestUnknownRMA(t *testing.T) {
	o := newOrchestrator(t, rmax.NewMemoryStore(), ledgerx.NewMemoryStore(),
		&scriptedDispatcher{}, &recordingNotifier{})

	_, err := o.HandleRequest(context.Background(), "rma-missing", "")
	if !errors.Is(err, contractx.ErrRMANotFound) {
		t.Fatalf("err = %v, want ErrRMANotFound", err)
	}
}

func TestHandleRequestEmptyRMAID(t *testing.T) {
	o := newOrchestrator(t, rmax.NewMemoryStore(), ledgerx.NewMemoryStore(),
		&scriptedDispatcher{}, &recordingNotifier{})

	_, err := o.HandleRequest(context.Background(), "  ", "")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestHandleRequestNotifierFailureDoesNotFailWorkflow(t *testing.T) {
	rmas := rmax.NewMemoryStore(&contractx.RMARecord{ID: "rma-6", Vendor: "qsc"})
	dispatcher := &scriptedDispatcher{results: []dispatchResult{{vendorRMAID: "Q-3"}}}
	notifier := &recordingNotifier{err: errors.New("mail provider down")}

	o := newOrchestrator(t, rmas, ledgerx.NewMemoryStore(), dispatcher, notifier)

	out, err := o.HandleRequest(context.Background(), "rma-6", "trace-6")
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	if out.VendorRMAID != "Q-3" {
		t.Fatalf("output = %+v", out)
	}
}
