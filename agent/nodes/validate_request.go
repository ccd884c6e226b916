package nodes

import (
	"fmt"
	"strings"
	"time"

	a2ax "github.com/claimr-app/claimr-mesh/agent/a2a"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

type GraphInput struct {
	RMAID   string
	TraceID string
}

type GraphOutput struct {
	RMAID       string
	VendorRMAID string
	NextHandler string
	TraceID     string
	Escalated   bool
}

type GraphState struct {
	RMAID   string
	TraceID string
	Now     time.Time

	RMA         *contractx.RMARecord
	NextHandler string

	VendorRMAID    string
	Escalated      bool
	FailureMessage string
}

// ValidateRequest checks the inbound request and mints the trace id
// when this is the first hop of the workflow instance.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	rmaID := strings.TrimSpace(in.RMAID)
	if rmaID == "" {
		return nil, fmt.Errorf("%w: rma id is empty", contractx.ErrValidation)
	}

	traceID := strings.TrimSpace(in.TraceID)
	if traceID == "" {
		traceID = a2ax.NewTraceID()
	}

	return &GraphState{
		RMAID:   rmaID,
		TraceID: traceID,
		Now:     nowFn().UTC(),
	}, nil
}
