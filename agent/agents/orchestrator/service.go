// Package orchestrator drives one RMA from intake to confirmation:
// validate, load, route, dispatch (with the one-retry recovery
// policy), record, notify.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/claimr-app/claimr-mesh/agent/contract"
	ledgerx "github.com/claimr-app/claimr-mesh/agent/ledger"
	nodex "github.com/claimr-app/claimr-mesh/agent/nodes"
	rmax "github.com/claimr-app/claimr-mesh/agent/rma"
)

type Orchestrator struct {
	rmas       rmax.Store
	ledger     ledgerx.Store
	dispatcher nodex.Dispatcher
	policy     nodex.Policy
	notifier   contractx.Notifier

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	rmas rmax.Store,
	ledger ledgerx.Store,
	dispatcher nodex.Dispatcher,
	policy nodex.Policy,
	notifier contractx.Notifier,
) (*Orchestrator, error) {
	if rmas == nil {
		return nil, errors.New("rma store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if policy == nil {
		return nil, errors.New("recovery policy is required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	o := &Orchestrator{
		rmas:       rmas,
		ledger:     ledger,
		dispatcher: dispatcher,
		policy:     policy,
		notifier:   notifier,
		now:        time.Now,
	}

	graphRunner, err := o.compileHandleRequestGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleRequest runs the full workflow for one RMA. An empty traceID
// marks this as the first hop and mints a new one.
func (o *Orchestrator) HandleRequest(ctx context.Context, rmaID string, traceID string) (nodex.GraphOutput, error) {
	return o.graphRunner.Invoke(ctx, nodex.GraphInput{
		RMAID:   rmaID,
		TraceID: traceID,
	})
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *contractx.RMARecord, string) error {
	return nil
}
