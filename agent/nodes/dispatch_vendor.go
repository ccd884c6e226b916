package nodes

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// Dispatcher executes the vendor interaction for one record.
type Dispatcher interface {
	Dispatch(ctx context.Context, record *contractx.RMARecord, traceID string) (string, error)
}

// Policy judges a reported failure.
type Policy interface {
	Classify(ctx context.Context, report contractx.FailureReport) (contractx.Verdict, error)
}

// DispatchVendor runs the dispatch engine and owns recovery: a first
// failure goes to the policy with retry_attempted=false and earns one
// re-dispatch; a second failure goes back with retry_attempted=true
// and ends in escalation. Terminal errors skip the policy's retry.
func DispatchVendor(ctx context.Context, in *GraphState, dispatcher Dispatcher, policy Policy) (*GraphState, error) {
	if in == nil || in.RMA == nil {
		return nil, fmt.Errorf("%w: rma record not loaded", contractx.ErrValidation)
	}

	vendorRMAID, err := dispatcher.Dispatch(ctx, in.RMA, in.TraceID)
	if err == nil {
		in.VendorRMAID = vendorRMAID
		return in, nil
	}
	if terminalFailure(err) {
		return nil, err
	}

	verdict, perr := policy.Classify(ctx, contractx.FailureReport{
		Agent:          contractx.AgentFormBot,
		RMAID:          in.RMAID,
		Err:            err.Error(),
		RetryAttempted: false,
	})
	if perr != nil {
		return nil, perr
	}
	if !verdict.Retry {
		in.Escalated = true
		in.FailureMessage = err.Error()
		return in, nil
	}

	vendorRMAID, err = dispatcher.Dispatch(ctx, in.RMA, in.TraceID)
	if err == nil {
		in.VendorRMAID = vendorRMAID
		return in, nil
	}
	if terminalFailure(err) {
		return nil, err
	}

	verdict, perr = policy.Classify(ctx, contractx.FailureReport{
		Agent:          contractx.AgentFormBot,
		RMAID:          in.RMAID,
		Err:            err.Error(),
		RetryAttempted: true,
	})
	if perr != nil {
		return nil, perr
	}

	in.Escalated = verdict.Escalate
	in.FailureMessage = err.Error()
	if !verdict.Escalate {
		// The policy never retries twice; treat anything else as an
		// escalation so the workflow cannot loop.
		in.Escalated = true
	}
	return in, nil
}

func terminalFailure(err error) bool {
	return errors.Is(err, contractx.ErrUnsupportedVendor) ||
		errors.Is(err, contractx.ErrCallPlacement) ||
		errors.Is(err, contractx.ErrMalformedReport) ||
		errors.Is(err, contractx.ErrRMANotFound) ||
		errors.Is(err, contractx.ErrValidation)
}
