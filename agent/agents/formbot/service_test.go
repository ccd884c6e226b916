package formbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	a2ax "github.com/claimr-app/claimr-mesh/agent/a2a"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
	vendorx "github.com/claimr-app/claimr-mesh/agent/vendor"
)

// fakeRegistry serves descriptors from a map so tests can point
// SubmitURL at an httptest server.
type fakeRegistry struct {
	descriptors map[string]*contractx.Descriptor
}

func (r *fakeRegistry) Resolve(vendorID string) (*contractx.Descriptor, error) {
	d, ok := r.descriptors[vendorID]
	if !ok {
		return nil, errors.New("vendor not supported: " + vendorID)
	}
	return d, nil
}

type fakeTransport struct {
	reply contractx.Message
	err   error
	sent  []contractx.Message
}

func (t *fakeTransport) Send(_ context.Context, msg contractx.Message) (contractx.Message, error) {
	t.sent = append(t.sent, msg)
	if t.err != nil {
		return contractx.Message{}, t.err
	}
	return t.reply, nil
}

func qscRecord() *contractx.RMARecord {
	return &contractx.RMARecord{
		ID:               "rma-1",
		Vendor:           "qsc",
		SerialNumber:     "SN-100",
		ModelNumber:      "K12.2",
		IssueDescription: "amp fault",
		SubmittedBy:      "tech@example.com",
	}
}

func TestDispatchRESTSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"rma_id": "Q-1"})
	}))
	defer srv.Close()

	registry := &fakeRegistry{descriptors: map[string]*contractx.Descriptor{
		"qsc": {
			Key:       "qsc",
			SubmitURL: srv.URL,
			FieldMapping: map[string]string{
				vendorx.FieldSerialNumber:     "serial_number",
				vendorx.FieldModelNumber:      "model_number",
				vendorx.FieldIssueDescription: "issue_description",
				vendorx.FieldSubmittedBy:      "submitted_by",
			},
			ResponseField: "rma_id",
		},
	}}
	ledger := ledgerx.NewMemoryStore()
	rmas := rmax.NewMemoryStore(qscRecord())

	svc, err := New(registry, vendorx.NewSubmitter(), &fakeTransport{}, ledger, rmas)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := svc.Dispatch(context.Background(), qscRecord(), "trace-1")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if got != "Q-1" {
		t.Fatalf("vendor rma id = %q, want Q-1", got)
	}

	record, _ := rmas.Get(context.Background(), "rma-1")
	if record.VendorRMAID != "Q-1" {
		t.Fatalf("stored vendor rma id = %q, want Q-1", record.VendorRMAID)
	}
	if record.Status != "submitted" {
		t.Fatalf("record status = %q, want submitted", record.Status)
	}

	entries, _ := ledger.Query(context.Background(), "rma-1")
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Type != contractx.ActionToolUse || entries[0].Data["vendor_rma_id"] != "Q-1" {
		t.Fatalf("ledger entry = %+v", entries[0])
	}
}

func TestDispatchIsIdempotentOnCapturedRecord(t *testing.T) {
	record := qscRecord()
	record.VendorRMAID = "Q-EXISTING"

	transport := &fakeTransport{}
	svc, err := New(&fakeRegistry{}, vendorx.NewSubmitter(), transport,
		ledgerx.NewMemoryStore(), rmax.NewMemoryStore(record))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := svc.Dispatch(context.Background(), record, "trace-1")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if got != "Q-EXISTING" {
		t.Fatalf("vendor rma id = %q, want Q-EXISTING", got)
	}
	if len(transport.sent) != 0 {
		t.Fatal("idempotent dispatch should not touch the transport")
	}
}

func TestDispatchUnsupportedVendor(t *testing.T) {
	registry := vendorx.NewRegistry(vendorx.Config{})
	ledger := ledgerx.NewMemoryStore()

	record := qscRecord()
	record.Vendor = "unknownvendor"

	svc, err := New(registry, vendorx.NewSubmitter(), &fakeTransport{}, ledger, rmax.NewMemoryStore(record))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = svc.Dispatch(context.Background(), record, "trace-1")
	if !errors.Is(err, contractx.ErrUnsupportedVendor) {
		t.Fatalf("err = %v, want ErrUnsupportedVendor", err)
	}

	entries, _ := ledger.Query(context.Background(), "rma-1")
	if len(entries) != 1 || entries[0].Type != contractx.ActionError {
		t.Fatalf("ledger entries = %+v, want one error entry", entries)
	}
}

func TestDispatchVoicePath(t *testing.T) {
	record := qscRecord()
	record.Vendor = "crestron"

	transport := &fakeTransport{
		reply: a2ax.NewMessage(contractx.AgentCallBot, contractx.AgentFormBot, contractx.MessageResponse, map[string]any{
			"rma_number": "CR99",
			"call_sid":   "CA123",
		}, "trace-1"),
	}
	registry := &fakeRegistry{descriptors: map[string]*contractx.Descriptor{
		"crestron": {Key: "crestron", RequiresVoice: true, ResponseField: "rma_reference"},
	}}
	ledger := ledgerx.NewMemoryStore()
	rmas := rmax.NewMemoryStore(record)

	svc, err := New(registry, vendorx.NewSubmitter(), transport, ledger, rmas)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := svc.Dispatch(context.Background(), record, "trace-1")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if got != "CR99" {
		t.Fatalf("vendor rma id = %q, want CR99", got)
	}

	if len(transport.sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(transport.sent))
	}
	sent := transport.sent[0]
	if sent.Recipient != contractx.AgentCallBot || sent.Type != contractx.MessageRequest {
		t.Fatalf("sent envelope = %+v", sent)
	}
	if sent.TraceID != "trace-1" {
		t.Fatalf("sent trace id = %q, want trace-1", sent.TraceID)
	}
	if sent.Payload["vendor"] != "crestron" || sent.Payload["rma_id"] != "rma-1" {
		t.Fatalf("sent payload = %v", sent.Payload)
	}

	entries, _ := ledger.Query(context.Background(), "rma-1")
	var types []contractx.ActionType
	for _, e := range entries {
		types = append(types, e.Type)
	}
	if len(entries) != 2 || entries[0].Type != contractx.ActionA2AMessage || entries[1].Type != contractx.ActionToolUse {
		t.Fatalf("ledger entry types = %v", types)
	}
}

func TestDispatchVoiceErrorEnvelope(t *testing.T) {
	record := qscRecord()
	record.Vendor = "crestron"

	transport := &fakeTransport{
		reply: a2ax.NewMessage(contractx.AgentCallBot, contractx.AgentFormBot, contractx.MessageError, map[string]any{
			"error": "no rma captured before deadline",
		}, "trace-1"),
	}
	registry := &fakeRegistry{descriptors: map[string]*contractx.Descriptor{
		"crestron": {Key: "crestron", RequiresVoice: true},
	}}

	svc, err := New(registry, vendorx.NewSubmitter(), transport,
		ledgerx.NewMemoryStore(), rmax.NewMemoryStore(record))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = svc.Dispatch(context.Background(), record, "trace-1")
	if !errors.Is(err, contractx.ErrVoiceCapture) {
		t.Fatalf("err = %v, want ErrVoiceCapture", err)
	}
}

func TestDispatchKeepsExistingValueOnWriteRace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"rma_id": "Q-LATE"})
	}))
	defer srv.Close()

	registry := &fakeRegistry{descriptors: map[string]*contractx.Descriptor{
		"qsc": {
			Key:           "qsc",
			SubmitURL:     srv.URL,
			FieldMapping:  map[string]string{vendorx.FieldSerialNumber: "serial_number"},
			ResponseField: "rma_id",
		},
	}}
	rmas := rmax.NewMemoryStore(qscRecord())

	svc, err := New(registry, vendorx.NewSubmitter(), &fakeTransport{}, ledgerx.NewMemoryStore(), rmas)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	// Another dispatch captures first. The stale in-memory record still
	// has no vendor rma id, so the write-once guard must kick in.
	if _, err := rmas.SetVendorRMAID(context.Background(), "rma-1", "Q-FIRST"); err != nil {
		t.Fatalf("SetVendorRMAID returned error: %v", err)
	}

	got, err := svc.Dispatch(context.Background(), qscRecord(), "trace-1")
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if got != "Q-FIRST" {
		t.Fatalf("vendor rma id = %q, want Q-FIRST", got)
	}

	record, _ := rmas.Get(context.Background(), "rma-1")
	if record.VendorRMAID != "Q-FIRST" {
		t.Fatalf("stored vendor rma id = %q, want Q-FIRST", record.VendorRMAID)
	}
}
