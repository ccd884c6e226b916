package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
)

// NotifySubmitter fires the confirmation once a vendor RMA id exists.
// A notification failure is logged and swallowed; it never fails the
// workflow.
func NotifySubmitter(ctx context.Context, in *GraphState, notifier contractx.Notifier) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Escalated || in.VendorRMAID == "" {
		return in, nil
	}

	if err := notifier.Notify(ctx, in.RMA, in.VendorRMAID); err != nil {
		log.Warn().
			Err(err).
			Str("rma_id", in.RMAID).
			Msg("confirmation notification failed")
	}
	return in, nil
}
