// Package a2a implements the agent-to-agent envelope delivery used by
// every agent in the mesh. Addressing is a static directory; delivery
// is a single POST of the JSON envelope to the recipient's endpoint.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// Directory resolves an agent id to its HTTP endpoint.
type Directory interface {
	Resolve(agentID string) (string, error)
}

// StaticDirectory maps every known agent under one base URL, the way
// the mesh is deployed: <host>/api/agents/<agent>.
type StaticDirectory struct {
	baseURL string
	known   map[string]struct{}
}

func NewStaticDirectory(baseURL string, agentIDs ...string) (*StaticDirectory, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("a2a host is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid a2a host: %w", err)
	}

	known := make(map[string]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		known[id] = struct{}{}
	}

	return &StaticDirectory{baseURL: baseURL, known: known}, nil
}

func (d *StaticDirectory) Resolve(agentID string) (string, error) {
	if _, ok := d.known[agentID]; !ok {
		return "", fmt.Errorf("%w: unknown agent %q", contractx.ErrTransport, agentID)
	}
	return d.baseURL + "/api/agents/" + agentID, nil
}

// Transport posts envelopes to directory-resolved addresses.
type Transport struct {
	directory  Directory
	httpClient *http.Client
}

type Option func(*Transport)

func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

func NewTransport(directory Directory, opts ...Option) (*Transport, error) {
	if directory == nil {
		return nil, errors.New("agent directory is required")
	}
	t := &Transport{
		directory: directory,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Send delivers msg to its recipient and returns the response
// envelope. Unknown recipient, network failure, or a non-2xx status
// all surface as ErrTransport. No ledger writes happen here.
func (t *Transport) Send(ctx context.Context, msg contractx.Message) (contractx.Message, error) {
	addr, err := t.directory.Resolve(msg.Recipient)
	if err != nil {
		return contractx.Message{}, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: marshal envelope: %v", contractx.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: build request: %v", contractx.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: %v", contractx.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: read response: %v", contractx.ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return contractx.Message{}, fmt.Errorf("%w: recipient=%s status=%d", contractx.ErrTransport, msg.Recipient, resp.StatusCode)
	}

	var reply contractx.Message
	if err := json.Unmarshal(raw, &reply); err != nil {
		return contractx.Message{}, fmt.Errorf("%w: decode response envelope: %v", contractx.ErrTransport, err)
	}

	return reply, nil
}

// NewMessage builds an envelope stamped with the call time. The trace
// id is taken verbatim from the caller so retries and escalations
// stay joined to the originating workflow instance.
func NewMessage(sender, recipient string, msgType contractx.MessageType, payload map[string]any, traceID string) contractx.Message {
	return contractx.Message{
		Sender:    sender,
		Recipient: recipient,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	}
}

// NewTraceID mints the trace id for the first hop of a workflow.
func NewTraceID() string {
	return uuid.NewString()
}
