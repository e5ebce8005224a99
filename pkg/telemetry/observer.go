package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// BroadcastObserver drains a broadcast.Hub's global feed and records spans
// and metrics for every execution it sees, the way the teacher's
// TelemetryObserver drained an observer.Manager — generalized from a
// single in-process engine's direct callback to an independent consumer
// of the Hub's pub/sub feed, so telemetry never blocks scheduling.
type BroadcastObserver struct {
	provider *Provider
	hub      *broadcast.Hub

	mu         sync.Mutex
	workflowSpans map[string]spanStart
	nodeSpans     map[string]map[string]spanStart
}

type spanStart struct {
	span  trace.Span
	start time.Time
}

// NewBroadcastObserver constructs an observer that will record telemetry
// for every execution published on hub once Run is called.
func NewBroadcastObserver(provider *Provider, hub *broadcast.Hub) *BroadcastObserver {
	return &BroadcastObserver{
		provider:      provider,
		hub:           hub,
		workflowSpans: make(map[string]spanStart),
		nodeSpans:     make(map[string]map[string]spanStart),
	}
}

// Run subscribes to the Hub's global feed and blocks, recording telemetry
// for every execution, until ctx is canceled. Each execution additionally
// gets a short-lived per-execution subscription (closed once that
// execution completes) so node-level spans can be recorded without every
// listener seeing every execution's node traffic.
func (o *BroadcastObserver) Run(ctx context.Context) {
	sub := o.hub.SubscribeGlobal()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			switch event.Kind {
			case broadcast.EventExecutionStarted:
				exec, _ := event.Payload.(types.WorkflowExecution)
				o.startWorkflow(ctx, exec)
				go o.trackExecution(ctx, exec.ID)
			case broadcast.EventExecutionCompleted:
				exec, _ := event.Payload.(types.WorkflowExecution)
				o.endWorkflow(ctx, exec)
			}
		}
	}
}

// trackExecution watches one execution's node events until it completes.
func (o *BroadcastObserver) trackExecution(ctx context.Context, executionID string) {
	sub := o.hub.Subscribe(executionID)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			switch event.Kind {
			case broadcast.EventNodeExecutionStarted:
				ne, _ := event.Payload.(types.NodeExecution)
				o.startNode(ctx, ne)
			case broadcast.EventNodeExecutionComplete:
				ne, _ := event.Payload.(types.NodeExecution)
				o.endNode(ctx, ne)
			case broadcast.EventExecutionCompleted:
				return
			}
		}
	}
}

func (o *BroadcastObserver) startWorkflow(ctx context.Context, exec types.WorkflowExecution) {
	_, span := o.provider.Tracer().Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", exec.WorkflowID),
			attribute.String("execution.id", exec.ID),
		),
	)

	o.mu.Lock()
	o.workflowSpans[exec.ID] = spanStart{span: span, start: time.Now()}
	o.nodeSpans[exec.ID] = make(map[string]spanStart)
	o.mu.Unlock()
}

func (o *BroadcastObserver) endWorkflow(ctx context.Context, exec types.WorkflowExecution) {
	o.mu.Lock()
	started, ok := o.workflowSpans[exec.ID]
	delete(o.workflowSpans, exec.ID)
	delete(o.nodeSpans, exec.ID)
	o.mu.Unlock()
	if !ok {
		return
	}

	duration := time.Since(started.start)
	success := exec.Status == types.ExecutionSuccess
	o.provider.RecordWorkflowExecution(ctx, exec.WorkflowID, duration, success, exec.Executed)

	if exec.ErrorMessage != "" {
		started.span.SetStatus(codes.Error, exec.ErrorMessage)
	} else {
		started.span.SetStatus(codes.Ok, "workflow completed")
	}
	started.span.End()
}

func (o *BroadcastObserver) startNode(ctx context.Context, ne types.NodeExecution) {
	o.mu.Lock()
	workflowSpan, hasWorkflow := o.workflowSpans[ne.ExecutionID]
	o.mu.Unlock()

	spanCtx := ctx
	if hasWorkflow {
		spanCtx = trace.ContextWithSpan(ctx, workflowSpan.span)
	}

	_, span := o.provider.Tracer().Start(spanCtx, "node.execute",
		trace.WithAttributes(
			attribute.String("node.id", ne.NodeID),
			attribute.String("execution.id", ne.ExecutionID),
		),
	)

	o.mu.Lock()
	if nodes, ok := o.nodeSpans[ne.ExecutionID]; ok {
		nodes[ne.NodeID] = spanStart{span: span, start: time.Now()}
	}
	o.mu.Unlock()
}

func (o *BroadcastObserver) endNode(ctx context.Context, ne types.NodeExecution) {
	o.mu.Lock()
	nodes, ok := o.nodeSpans[ne.ExecutionID]
	var started spanStart
	var hasSpan bool
	if ok {
		started, hasSpan = nodes[ne.NodeID]
		delete(nodes, ne.NodeID)
	}
	o.mu.Unlock()

	duration := time.Duration(ne.DurationMS) * time.Millisecond
	success := ne.Status == types.NodeStatusSuccess
	o.provider.RecordNodeExecution(ctx, ne.NodeID, ne.NodeName, duration, success)

	if !hasSpan {
		return
	}
	if ne.ErrorMessage != "" {
		started.span.SetStatus(codes.Error, ne.ErrorMessage)
	} else {
		started.span.SetStatus(codes.Ok, "node completed")
	}
	started.span.End()
}
