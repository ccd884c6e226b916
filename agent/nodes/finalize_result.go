package nodes

import (
	"fmt"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

func FinalizeResult(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	return GraphOutput{
		RMAID:       in.RMAID,
		VendorRMAID: in.VendorRMAID,
		NextHandler: in.NextHandler,
		TraceID:     in.TraceID,
		Escalated:   in.Escalated,
	}, nil
}
