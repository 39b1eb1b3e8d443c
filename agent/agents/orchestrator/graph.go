package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	nodex "github.com/tanpawarit/frontdesk-agent/agent/nodes"
)

func (o *Orchestrator) compileHandleInboundGraph(
	ctx context.Context,
) (compose.Runnable[contractx.Envelope, contractx.Outcome], error) {
	graph := compose.NewGraph[contractx.Envelope, contractx.Outcome]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in contractx.Envelope) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("classify_intent",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyIntent(ctx, in, o.models.Classifier())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_intent: %w", err)
	}

	handlers := map[string]func(context.Context, *nodex.GraphState) (*nodex.GraphState, error){
		nodex.NodeHandleSchedule: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HandleSchedule(ctx, in, o.store, o.policy)
		},
		nodex.NodeHandleQuestion: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HandleQuestion(ctx, in, o.models.Knowledge())
		},
		nodex.NodeHandleCancel: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HandleCancel(ctx, in, o.store)
		},
		nodex.NodeHandleModify: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HandleModify(ctx, in, o.store, o.policy)
		},
		nodex.NodeHandleFallback: func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.HandleFallback(ctx, in, o.models.TextGenerator())
		},
	}
	for name, fn := range handlers {
		if err := graph.AddLambdaNode(name, compose.InvokableLambda(fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}

	if err := graph.AddLambdaNode("dispatch_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.Outcome, error) {
			return nodex.DispatchReply(ctx, in, o.dispatcher)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.RouteIntent(in)
		},
		nodex.RouteEnds,
	)
	if err := graph.AddBranch("classify_intent", branch); err != nil {
		return nil, fmt.Errorf("add intent branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "classify_intent"},
		{"dispatch_reply", compose.END},
	}
	for name := range handlers {
		edges = append(edges, [2]string{name, "dispatch_reply"})
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_inbound"))
	if err != nil {
		return nil, fmt.Errorf("compile inbound graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) compileHandleNoShowGraph(
	ctx context.Context,
) (compose.Runnable[string, contractx.Outcome], error) {
	graph := compose.NewGraph[string, contractx.Outcome]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, id string) (*nodex.NoShowState, error) {
			return nodex.ValidateNoShow(id, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("lookup_appointment",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.NoShowState) (*nodex.NoShowState, error) {
			return nodex.LookupAppointment(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node lookup_appointment: %w", err)
	}

	if err := graph.AddLambdaNode("compose_follow_up",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.NoShowState) (*nodex.GraphState, error) {
			return nodex.ComposeFollowUp(in, o.policy)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_follow_up: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.Outcome, error) {
			return nodex.DispatchReply(ctx, in, o.dispatcher)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "lookup_appointment"},
		{"lookup_appointment", "compose_follow_up"},
		{"compose_follow_up", "dispatch_reply"},
		{"dispatch_reply", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_no_show"))
	if err != nil {
		return nil, fmt.Errorf("compile no-show graph: %w", err)
	}
	return runner, nil
}
