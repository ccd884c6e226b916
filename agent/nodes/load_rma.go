package nodes

import (
	"context"
	"fmt"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

func LoadRMA(ctx context.Context, in *GraphState, store rmax.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	record, err := store.Get(ctx, in.RMAID)
	if err != nil {
		return nil, err
	}

	in.RMA = record
	return in, nil
}
