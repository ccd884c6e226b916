package nodes

import (
	"fmt"

	traceroutex "github.com/claimr-app/claimr-mesh/agent/agents/traceroute"
	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

func RouteVendor(in *GraphState) (*GraphState, error) {
	if in == nil || in.RMA == nil {
		return nil, fmt.Errorf("%w: rma record not loaded", contractx.ErrValidation)
	}

	in.NextHandler = traceroutex.Route(in.RMA)
	return in, nil
}
