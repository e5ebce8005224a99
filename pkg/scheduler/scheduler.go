// Package scheduler implements the Graph Scheduler (C4): the loop that
// walks a validated workflow graph, dispatches ready nodes to the node
// runtime (C2), applies retry/branching/merge/cancellation/timeout
// policy, and records the run to the journal (C5) and live broadcast
// (C6) in the order those components require (§4.4).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/broadcast"
	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/graph"
	"github.com/flowcraft/workflow-core/pkg/httpclient"
	"github.com/flowcraft/workflow-core/pkg/journal"
	"github.com/flowcraft/workflow-core/pkg/logging"
	"github.com/flowcraft/workflow-core/pkg/middleware"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// gracePeriod is not read: a canceled or timed-out execution finalizes
// only after every in-flight node has returned, and that wait has no
// time bound.
const gracePeriod = 5 * time.Second

// logFlushSize bounds how many buffered ExecutionLog rows accumulate
// before a mid-run flush (§4.5 hot-path batching).
const logFlushSize = 50

// journalRetryAttempts bounds how many times a single journal write is
// retried before it is logged and dropped; a journal error never aborts
// an otherwise-successful execution (§7).
const journalRetryAttempts = 3

// Scheduler runs WorkflowExecutions against a node registry, persisting
// progress to a journal.Store and fanning it out through a broadcast.Hub.
// One Scheduler instance is process-wide; each Execute call owns its own
// per-execution state.
type Scheduler struct {
	registry *executor.Registry
	store    journal.Store
	hub      *broadcast.Hub
	cfg      types.Config

	credentials CredentialProvider
	environment EnvironmentProvider
	httpClients *httpclient.Registry
	clock       Clock
	logger      *logging.Logger
	chain       *middleware.Chain
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithCredentialProvider wires a CredentialProvider; the default rejects
// every credential lookup.
func WithCredentialProvider(p CredentialProvider) Option {
	return func(s *Scheduler) { s.credentials = p }
}

// WithEnvironmentProvider wires an EnvironmentProvider; the default
// reports every name as unset.
func WithEnvironmentProvider(p EnvironmentProvider) Option {
	return func(s *Scheduler) { s.environment = p }
}

// WithHTTPClients wires the named HTTP client registry exposed to nodes
// via ExecutionContext.HTTPClient.
func WithHTTPClients(r *httpclient.Registry) Option {
	return func(s *Scheduler) { s.httpClients = r }
}

// WithClock overrides the scheduler's time source, for deterministic
// tests of timeout and backoff behavior.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger attaches a base logger; every execution derives a
// workflow/execution-scoped child from it.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMiddleware wraps every node dispatch in chain, between the
// scheduler's own retry/timeout policy and the registry. Use it for
// cross-cutting concerns the scheduler doesn't own: logging, metrics,
// rate limiting, resource-limit enforcement (§6).
func WithMiddleware(chain *middleware.Chain) Option {
	return func(s *Scheduler) { s.chain = chain }
}

// New builds a Scheduler. registry, store, and hub are required; cfg
// supplies resource limits and the fallback execution timeout.
func New(registry *executor.Registry, store journal.Store, hub *broadcast.Hub, cfg types.Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:    registry,
		store:       store,
		hub:         hub,
		cfg:         cfg,
		credentials: noopCredentials{},
		environment: noopEnvironment{},
		clock:       systemClock{},
		logger:      logging.New(logging.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries the mutable state of one Execute call so its many helper
// methods don't need a dozen parameters apiece.
type run struct {
	s *Scheduler

	exec types.WorkflowExecution
	def  types.WorkflowDefinition
	g    *graph.Graph
	rc   *runContext

	execCtx    context.Context
	execCancel context.CancelFunc

	logger *logging.Logger

	mu         sync.Mutex
	completed  map[string]bool
	live       map[string]bool // node ID -> whether it ran/was reachable (not skipped)
	output     map[string]string
	hasOutput  map[string]bool
	path       []string
	executed   int
	skipped    int
	failed     int
	orderSeq   int
	logSeq     int64
	logBuf     []types.ExecutionLog
	failure    string
	terminated bool
}

// Execute runs def to completion (or to a terminal failure/cancellation/
// timeout) and returns the finished WorkflowExecution record. ctx carries
// the caller's cancellation signal (§6 Execute(workflow, trigger, cancel)).
func (s *Scheduler) Execute(ctx context.Context, wf types.Workflow, triggerMode types.TriggerMode, triggerData interface{}) (types.WorkflowExecution, error) {
	def := wf.Definition
	if def.Settings == (types.WorkflowSettings{}) {
		def.Settings = types.DefaultSettings()
	}

	g, err := graph.Build(def)
	if err != nil {
		return types.WorkflowExecution{}, err
	}
	for _, n := range def.Nodes {
		if !n.Enabled {
			continue
		}
		if verr := s.registry.Validate(n); verr != nil {
			return types.WorkflowExecution{}, &types.DefinitionError{Kind: "invalid_parameters", NodeID: n.ID, Reason: verr.Error()}
		}
	}

	exec := types.WorkflowExecution{
		ID:          types.GenerateExecutionID(),
		WorkflowID:  wf.ID,
		Environment: wf.Environment,
		Status:      types.ExecutionRunning,
		StartedAt:   s.clock.Now(),
		TriggerMode: triggerMode,
		TriggerData: triggerData,
	}

	execTimeout := def.Settings.ExecutionTimeout
	if execTimeout <= 0 {
		execTimeout = s.cfg.DefaultExecutionTimeout
	}
	var execCtx context.Context
	var execCancel context.CancelFunc
	if execTimeout > 0 {
		execCtx, execCancel = context.WithTimeout(ctx, execTimeout)
	} else {
		execCtx, execCancel = context.WithCancel(ctx)
	}
	defer execCancel()

	r := &run{
		s:          s,
		exec:       exec,
		def:        def,
		g:          g,
		execCtx:    execCtx,
		execCancel: execCancel,
		logger:     s.logger.WithWorkflowID(wf.ID).WithExecutionID(exec.ID),
		completed:  make(map[string]bool),
		live:       make(map[string]bool),
		output:     make(map[string]string),
		hasOutput:  make(map[string]bool),
	}
	r.rc = newRunContext(g, wf.ID, wf.Name, def, triggerData, s.cfg, s.credentials, s.environment, s.httpClients)

	r.writeExecution(r.exec)
	s.hub.ExecutionStarted(r.exec)

	r.loop()

	r.finalize()
	return r.exec, nil
}

// loop drives the ready-queue until nothing more is in flight.
func (r *run) loop() {
	for {
		if r.isTerminated() {
			break
		}
		ready := r.g.Ready(r.completedSnapshot())
		if len(ready) == 0 {
			break
		}

		if r.def.Settings.ExecutionMode == types.ExecutionModeParallel {
			r.runBatchParallel(ready)
		} else {
			r.runBatchSequential(ready)
		}
	}
}

func (r *run) completedSnapshot() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.completed))
	for k, v := range r.completed {
		out[k] = v
	}
	return out
}

func (r *run) isTerminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminated
}

func (r *run) runBatchSequential(ready []string) {
	for _, id := range ready {
		if r.isTerminated() {
			return
		}
		r.dispatch(id)
	}
}

func (r *run) runBatchParallel(ready []string) {
	maxConcurrency := r.def.Settings.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = types.DefaultSettings().MaxConcurrency
	}
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	for _, id := range ready {
		if r.isTerminated() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if r.isTerminated() {
				return
			}
			r.dispatch(nodeID)
		}(id)
	}
	wg.Wait()
}

// dispatch decides whether node is reachable (some live inbound edge, or
// no inbound edges at all) and either runs it or marks it Skipped.
func (r *run) dispatch(nodeID string) {
	node := r.g.GetNode(nodeID)
	if node == nil || !node.Enabled {
		r.markSkipped(nodeID, "disabled")
		return
	}

	inbound := r.g.GetInputConnections(nodeID)
	if len(inbound) > 0 && !r.anyLive(inbound) {
		r.markSkipped(nodeID, "pruned-by-branch")
		return
	}

	r.runNode(*node)
}

// anyLive reports whether at least one of conns originates from a node
// that ran successfully and selected (or left unconditional) that edge.
func (r *run) anyLive(conns []types.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range conns {
		if !r.live[c.SourceNodeID] {
			continue
		}
		if !r.hasOutput[c.SourceNodeID] {
			return true
		}
		sel := r.output[c.SourceNodeID]
		if c.SourceOutput == "" || c.SourceOutput == sel {
			return true
		}
	}
	return false
}

// markSkipped records nodeID as Skipped: a NodeResult is still stored so
// ec.Inputs() and downstream Merge nodes see it, but it counts toward
// completed without ever running (§4.4 step 7).
func (r *run) markSkipped(nodeID string, reason string) {
	node := r.g.GetNode(nodeID)
	name := nodeID
	if node != nil {
		name = displayName(*node)
	}

	now := r.s.clock.Now()
	ne := types.NodeExecution{
		ID:          types.GenerateExecutionID(),
		ExecutionID: r.exec.ID,
		NodeID:      nodeID,
		NodeName:    name,
		Status:      types.NodeStatusSkipped,
		StartedAt:   now,
		FinishedAt:  &now,
	}

	r.rc.setResult(nodeID, types.NodeResult{Success: false})
	r.mu.Lock()
	r.completed[nodeID] = true
	r.live[nodeID] = false
	r.skipped++
	r.mu.Unlock()

	r.appendLog(types.LogInfo, nodeID, name, fmt.Sprintf("skipped: %s", reason), nil)
	r.writeNodeExecution(ne)
	r.s.hub.NodeExecutionCompleted(ne)
}

// runNode executes node to a terminal NodeStatus, applying retry policy,
// then updates shared scheduler state (§4.4 steps 5-6).
func (r *run) runNode(node types.Node) {
	name := displayName(node)
	nodeLogger := r.logger.WithNodeID(node.ID).WithNodeKind(node.Kind)

	retry := types.DefaultRetrySettings()
	if node.Retry != nil {
		retry = *node.Retry
	}

	ne := types.NodeExecution{
		ID:          types.GenerateExecutionID(),
		ExecutionID: r.exec.ID,
		NodeID:      node.ID,
		NodeName:    name,
		Status:      types.NodeStatusRunning,
		StartedAt:   r.s.clock.Now(),
	}
	r.writeNodeExecution(ne)
	r.s.hub.NodeExecutionStarted(ne)

	var result types.NodeResult
	attempt := 0
	for {
		result = r.invoke(node)
		ne.RetryCount = attempt

		if result.Success || result.Err == nil {
			break
		}
		if result.Err.Kind == types.ErrorKindValidation || result.Err.Kind == types.ErrorKindCancel {
			break
		}
		if attempt >= retry.MaxRetries {
			break
		}
		if r.execCtx.Err() != nil {
			break
		}

		delay := backoffDelay(retry, attempt)
		nodeLogger.Warnf("node %s attempt %d failed (%s), retrying in %s", node.ID, attempt, result.Err.Message, delay)
		r.appendLog(types.LogWarn, node.ID, name, fmt.Sprintf("attempt %d failed: %s, retrying in %s", attempt, result.Err.Message, delay), nil)

		select {
		case <-r.s.clock.After(delay):
		case <-r.execCtx.Done():
		}
		if r.execCtx.Err() != nil {
			break
		}
		attempt++
	}

	finished := r.s.clock.Now()
	ne.FinishedAt = &finished
	ne.DurationMS = finished.Sub(ne.StartedAt).Milliseconds()
	ne.InputData = inputsSummary(r.rc.Inputs(node.ID))
	ne.OutputData = result.Data

	r.rc.setResult(node.ID, result)

	switch {
	case result.Success:
		ne.Status = types.NodeStatusSuccess
		r.recordOutput(node.ID, result)
		r.mu.Lock()
		r.completed[node.ID] = true
		r.live[node.ID] = true
		r.executed++
		r.path = append(r.path, node.ID)
		r.mu.Unlock()
		r.appendLog(types.LogInfo, node.ID, name, "completed", nil)

	case result.Err != nil && result.Err.Kind == types.ErrorKindCancel:
		ne.Status = types.NodeStatusCanceled
		ne.ErrorMessage = result.Err.Message
		r.mu.Lock()
		r.completed[node.ID] = true
		r.live[node.ID] = false
		r.mu.Unlock()
		r.appendLog(types.LogWarn, node.ID, name, "canceled", nil)

	default:
		msg := "node failed"
		if result.Err != nil {
			msg = result.Err.Message
		}
		ne.Status = types.NodeStatusError
		ne.ErrorMessage = msg
		r.mu.Lock()
		r.completed[node.ID] = true
		r.live[node.ID] = false
		r.failed++
		r.path = append(r.path, node.ID)
		r.mu.Unlock()
		r.appendLog(types.LogError, node.ID, name, msg, nil)
		r.fail(msg)
	}

	r.writeNodeExecution(ne)
	r.s.hub.NodeExecutionCompleted(ne)
}

// invoke resolves node's parameters, runs it through the registry with a
// deadline scoped to the lesser of the node's timeout and the remaining
// execution budget, and converts a canceled/deadline-exceeded context
// into the matching NodeResult (§5 suspension points).
func (r *run) invoke(node types.Node) types.NodeResult {
	var jsonData interface{}
	if inputs := r.rc.Inputs(node.ID); len(inputs) > 0 {
		jsonData = inputs[0].Data
	}
	resolved, err := resolveParameters(r.rc, node.Parameters, jsonData)
	if err != nil {
		return types.Fail(types.ErrorKindValidation, fmt.Sprintf("parameter resolution failed: %v", err), err)
	}
	node.Parameters = resolved

	timeout := node.Timeout
	if timeout <= 0 {
		timeout = r.s.cfg.MaxNodeExecutionTime
	}
	var nodeCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		nodeCtx, cancel = context.WithTimeout(r.execCtx, timeout)
	} else {
		nodeCtx, cancel = context.WithCancel(r.execCtx)
	}
	defer cancel()

	var result types.NodeResult
	if r.s.chain != nil {
		result = r.s.chain.Execute(nodeCtx, r.rc, node, r.s.registry.Execute)
	} else {
		result = r.s.registry.Execute(nodeCtx, r.rc, node)
	}
	if !result.Success && result.Err == nil {
		result = types.Fail(types.ErrorKindExecution, "node returned failure with no error detail", nil)
	}
	if nodeCtx.Err() != nil && (result.Err == nil || result.Err.Kind != types.ErrorKindCancel) {
		if r.execCtx.Err() != nil {
			return types.Fail(types.ErrorKindCancel, "execution canceled", r.execCtx.Err())
		}
		return types.Fail(types.ErrorKindTimeout, "node timed out", nodeCtx.Err())
	}
	return result
}

// recordOutput captures the branching output name a successful node
// selected, if it reported one in its Data map under "output" (§4.4 step 7).
func (r *run) recordOutput(nodeID string, result types.NodeResult) {
	m, ok := result.Data.(map[string]any)
	if !ok {
		return
	}
	out, ok := m["output"].(string)
	if !ok {
		return
	}
	r.mu.Lock()
	r.output[nodeID] = out
	r.hasOutput[nodeID] = true
	r.mu.Unlock()
}

// fail records the execution's first failure cause and stops scheduling
// further work; in Parallel mode it also cancels the execution context so
// in-flight sibling nodes observe cancellation.
func (r *run) fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure == "" {
		r.failure = message
	}
	if r.def.Settings.ExecutionMode != types.ExecutionModeParallel {
		r.terminated = true
	} else {
		r.terminated = true
		r.execCancel()
	}
}

// finalize determines the execution's terminal status, flushes buffered
// logs, and writes/broadcasts the completed WorkflowExecution.
func (r *run) finalize() {
	finished := r.s.clock.Now()
	r.exec.FinishedAt = &finished
	r.exec.DurationMS = finished.Sub(r.exec.StartedAt).Milliseconds()

	r.mu.Lock()
	r.exec.Executed = r.executed
	r.exec.Skipped = r.skipped
	r.exec.Failed = r.failed
	r.exec.ExecutionPath = append([]string{}, r.path...)
	failure := r.failure
	r.mu.Unlock()

	switch {
	case r.execCtx.Err() == context.DeadlineExceeded:
		r.exec.Status = types.ExecutionTimeout
		if failure == "" {
			failure = "execution timed out"
		}
	case failure != "":
		r.exec.Status = types.ExecutionError
	case r.parentCanceled():
		r.exec.Status = types.ExecutionCanceled
		if failure == "" {
			failure = "execution canceled"
		}
	default:
		r.exec.Status = types.ExecutionSuccess
	}
	r.exec.ErrorMessage = failure

	r.flushLogs()
	r.writeExecution(r.exec)
	r.s.hub.ExecutionCompleted(r.exec)
}

// parentCanceled reports whether the caller's cancel signal (as opposed
// to this execution's own timeout) is what stopped the run.
func (r *run) parentCanceled() bool {
	select {
	case <-r.execCtx.Done():
		return r.execCtx.Err() != nil && r.execCtx.Err() != context.DeadlineExceeded
	default:
		return false
	}
}

// appendLog buffers one ExecutionLog row, flushing the buffer once it
// reaches logFlushSize (§4.5 hot-path batching).
func (r *run) appendLog(level types.LogLevel, nodeID, nodeName, message string, metadata map[string]any) {
	r.mu.Lock()
	r.logSeq++
	log := types.ExecutionLog{
		ID:          types.GenerateExecutionID(),
		ExecutionID: r.exec.ID,
		Seq:         r.logSeq,
		Timestamp:   r.s.clock.Now(),
		Level:       level,
		Message:     message,
		NodeID:      nodeID,
		NodeName:    nodeName,
		Metadata:    metadata,
	}
	r.logBuf = append(r.logBuf, log)
	shouldFlush := len(r.logBuf) >= logFlushSize
	r.mu.Unlock()

	r.s.hub.Log(log)
	if shouldFlush {
		r.flushLogs()
	}
}

func (r *run) flushLogs() {
	r.mu.Lock()
	batch := r.logBuf
	r.logBuf = nil
	r.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	r.retryJournal("append logs", func() error {
		return r.s.store.AppendLogs(context.Background(), batch)
	})
}

func (r *run) writeExecution(exec types.WorkflowExecution) {
	r.retryJournal("write execution", func() error {
		if exec.FinishedAt == nil {
			return r.s.store.CreateExecution(context.Background(), exec)
		}
		return r.s.store.UpdateExecution(context.Background(), exec)
	})
}

func (r *run) writeNodeExecution(ne types.NodeExecution) {
	r.retryJournal("write node execution", func() error {
		return r.s.store.UpsertNodeExecution(context.Background(), ne)
	})
}

// retryJournal retries a journal write with exponential backoff; a
// failure after all attempts is logged and swallowed — it never aborts
// an otherwise-successful execution (§4.5, §7).
func (r *run) retryJournal(op string, fn func() error) {
	base := r.s.cfg.DefaultBackoff
	if base <= 0 {
		base = time.Second
	}
	var lastErr error
	for attempt := 0; attempt < journalRetryAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			r.logger.WithError(err).Warnf("journal %s failed (attempt %d)", op, attempt+1)
			if attempt < journalRetryAttempts-1 {
				<-r.s.clock.After(base * time.Duration(1<<uint(attempt)))
			}
			continue
		}
		return
	}
	r.logger.WithError(lastErr).Errorf("journal %s failed after %d attempts, dropping", op, journalRetryAttempts)
}

// backoffDelay computes base * 2^attempt capped at maxDelay (§4.4 step 6).
func backoffDelay(retry types.RetrySettings, attempt int) time.Duration {
	base := retry.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

// resolveParameters walks a node's parameter map, resolving every string
// value and recursing into nested maps/slices (§4.4 "Parameter
// resolution"). jsonData is the node's primary upstream input, bound as
// $json (§4.3) alongside the usual node/variable/context environment.
func resolveParameters(rc *runContext, params map[string]any, jsonData interface{}) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		resolved, err := resolveValue(rc, v, jsonData)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(rc *runContext, v any, jsonData interface{}) (any, error) {
	switch val := v.(type) {
	case string:
		return rc.resolveParameterWithJSON(val, jsonData)
	case map[string]any:
		return resolveParameters(rc, val, jsonData)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveValue(rc, item, jsonData)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// inputsSummary converts a node's resolved predecessor results into a
// plain slice of their Data for the NodeExecution.InputData column.
func inputsSummary(inputs []types.NodeResult) []any {
	if len(inputs) == 0 {
		return nil
	}
	out := make([]any, len(inputs))
	for i, in := range inputs {
		out[i] = in.Data
	}
	return out
}

func displayName(node types.Node) string {
	if node.DisplayName != "" {
		return node.DisplayName
	}
	return node.ID
}
