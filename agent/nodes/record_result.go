package nodes

import (
	"context"
	"fmt"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
)

// RecordResult writes the workflow-level outcome: either the captured
// vendor RMA id or the fact that the request was escalated.
func RecordResult(ctx context.Context, in *GraphState, store ledgerx.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	action := contractx.Action{
		AgentID: contractx.AgentOrchestrator,
		Type:    contractx.ActionStateChange,
		Data: map[string]any{
			"next_handler": in.NextHandler,
			"trace_id":     in.TraceID,
		},
		RMAID:  in.RMAID,
		Status: contractx.StatusSuccess,
	}

	if in.Escalated {
		action.Data["outcome"] = "escalated"
		action.Status = contractx.StatusFailure
		action.ErrorMessage = in.FailureMessage
	} else {
		action.Data["outcome"] = "captured"
		action.Data["vendor_rma_id"] = in.VendorRMAID
	}

	if err := store.Append(ctx, action); err != nil {
		return nil, err
	}
	return in, nil
}
