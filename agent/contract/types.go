package contract

import (
	"context"
	"time"
)

// Agent ids used for A2A addressing and ledger attribution.
const (
	AgentOrchestrator = "orchestrator"
	AgentTraceRoute   = "traceroute"
	AgentFormBot      = "formbot"
	AgentCallBot      = "callbot"
	AgentFailsafe     = "failsafe"
	AgentEcho         = "echo"
	AgentLedger       = "ledger"
)

type MessageType string

const (
	MessageRequest      MessageType = "request"
	MessageResponse     MessageType = "response"
	MessageError        MessageType = "error"
	MessageNotification MessageType = "notification"
)

// Message is the A2A envelope exchanged between agents. TraceID is
// minted once at the first hop of a workflow instance and carried
// verbatim on every subsequent hop, including retries.
type Message struct {
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Type      MessageType    `json:"message_type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ActionType string

const (
	ActionA2AMessage  ActionType = "a2a_message"
	ActionToolUse     ActionType = "tool_use"
	ActionStateChange ActionType = "state_change"
	ActionError       ActionType = "error"
)

type ActionStatus string

const (
	StatusSuccess ActionStatus = "success"
	StatusFailure ActionStatus = "failure"
	StatusPending ActionStatus = "pending"
)

// Action is one append-only ledger entry. ID is assigned by the store
// in write order and is the tie-breaker when timestamps collide.
type Action struct {
	ID           int64          `json:"id,omitempty"`
	AgentID      string         `json:"agent_id"`
	Type         ActionType     `json:"action_type"`
	Data         map[string]any `json:"action_data"`
	RMAID        string         `json:"rma_id,omitempty"`
	Status       ActionStatus   `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// RMARecord mirrors one row of rma_requests. VendorRMAID is
// write-once: the store refuses to replace a non-empty value.
type RMARecord struct {
	ID               string    `json:"id"`
	Vendor           string    `json:"vendor"`
	SerialNumber     string    `json:"serial_number"`
	ModelNumber      string    `json:"model_number"`
	IssueDescription string    `json:"issue_description"`
	SubmittedBy      string    `json:"submitted_by"`
	CreatedAt        time.Time `json:"created_at"`
	Status           string    `json:"status,omitempty"`
	VendorRMAID      string    `json:"vendor_rma_id,omitempty"`
	CallSID          string    `json:"call_sid,omitempty"`
}

// CallResult is the out-of-band capture delivered by the telephony
// webhook, keyed by the call sid assigned at placement.
type CallResult struct {
	CallSID       string `json:"call_sid"`
	RMANumber     string `json:"rma_number"`
	TranscriptURL string `json:"transcript_url,omitempty"`
}

// FailureReport is what a failing step hands the recovery policy.
type FailureReport struct {
	Agent          string `json:"agent"`
	RMAID          string `json:"rma_id"`
	Err            string `json:"error"`
	RetryAttempted bool   `json:"retry_attempted"`
}

// Verdict is the recovery decision: exactly one of Retry or Escalate
// is set for a well-formed report.
type Verdict struct {
	Retry    bool   `json:"retry,omitempty"`
	Escalate bool   `json:"escalate,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SubmitFunc is a bespoke submission strategy for a vendor whose
// integration cannot be expressed as descriptor data alone.
type SubmitFunc func(ctx context.Context, rma *RMARecord) (string, error)

// Descriptor tells the dispatch engine how to talk to one vendor.
type Descriptor struct {
	Key           string            // normalized vendor id
	Name          string            // display name
	SubmitURL     string            // REST submission endpoint
	APIKey        string            // bearer token for the endpoint
	FieldMapping  map[string]string // canonical field -> vendor field
	ResponseField string            // response field carrying the vendor RMA id
	RequiresVoice bool              // true when the RMA number is captured by phone
	PhoneNumber   string            // support line for voice vendors
	Submit        SubmitFunc        // optional custom strategy; overrides the REST path
}
