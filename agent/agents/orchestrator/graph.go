package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/claimr-app/claimr-mesh/agent/nodes"
)

func (o *Orchestrator) compileHandleRequestGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_rma",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadRMA(ctx, in, o.rmas)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_rma: %w", err)
	}

	if err := graph.AddLambdaNode("route_vendor",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RouteVendor(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route_vendor: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_vendor",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchVendor(ctx, in, o.dispatcher, o.policy)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_vendor: %w", err)
	}

	if err := graph.AddLambdaNode("record_result",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RecordResult(ctx, in, o.ledger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_result: %w", err)
	}

	if err := graph.AddLambdaNode("notify_submitter",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.NotifySubmitter(ctx, in, o.notifier)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node notify_submitter: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_result",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeResult(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_result: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_rma"},
		{"load_rma", "route_vendor"},
		{"route_vendor", "dispatch_vendor"},
		{"dispatch_vendor", "record_result"},
		{"record_result", "notify_submitter"},
		{"notify_submitter", "finalize_result"},
		{"finalize_result", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_request"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
