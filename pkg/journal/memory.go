package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// MemoryStore is an in-memory Store, modeled on the teacher's
// InMemoryStore: a mutex-guarded map per record kind, safe for
// concurrent use, with no persistence across process restarts. Suitable
// for tests and single-process development.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string]types.WorkflowExecution
	nodes      map[string][]types.NodeExecution // keyed by execution id
	logs       map[string][]types.ExecutionLog  // keyed by execution id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]types.WorkflowExecution),
		nodes:      make(map[string][]types.NodeExecution),
		logs:       make(map[string][]types.ExecutionLog),
	}
}

// CreateExecution inserts a new WorkflowExecution row.
func (s *MemoryStore) CreateExecution(ctx context.Context, exec types.WorkflowExecution) error {
	if exec.ID == "" {
		return fmt.Errorf("journal: execution id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = exec
	return nil
}

// UpdateExecution overwrites an existing WorkflowExecution row in place.
func (s *MemoryStore) UpdateExecution(ctx context.Context, exec types.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[exec.ID]; !ok {
		return fmt.Errorf("journal: execution %s not found", exec.ID)
	}
	s.executions[exec.ID] = exec
	return nil
}

// GetExecution returns one execution, optionally with its node
// executions and logs nested.
func (s *MemoryStore) GetExecution(ctx context.Context, id string, includeNodes, includeLogs bool) (*ExecutionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("journal: execution %s not found", id)
	}
	detail := &ExecutionDetail{Execution: exec}
	if includeNodes {
		detail.NodeExecutions = append([]types.NodeExecution{}, s.nodes[id]...)
	}
	if includeLogs {
		detail.Logs = append([]types.ExecutionLog{}, s.logs[id]...)
	}
	return detail, nil
}

// ListExecutions filters executions by workflow/status/environment/time
// window, sorted by StartedAt descending, with paging.
func (s *MemoryStore) ListExecutions(ctx context.Context, filter ListFilter) ([]types.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]types.WorkflowExecution, 0)
	for _, exec := range s.executions {
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		if filter.Environment != "" && exec.Environment != filter.Environment {
			continue
		}
		if !filter.Since.IsZero() && exec.StartedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && exec.StartedAt.After(filter.Until) {
			continue
		}
		matches = append(matches, exec)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartedAt.After(matches[j].StartedAt)
	})

	return paginate(matches, filter.Offset, filter.Limit), nil
}

func paginate(execs []types.WorkflowExecution, offset, limit int) []types.WorkflowExecution {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(execs) {
		return []types.WorkflowExecution{}
	}
	end := len(execs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return execs[offset:end]
}

// RecentByWorkflow returns up to limit most recent executions for a
// workflow, newest first.
func (s *MemoryStore) RecentByWorkflow(ctx context.Context, workflowID string, limit int) ([]types.WorkflowExecution, error) {
	return s.ListExecutions(ctx, ListFilter{WorkflowID: workflowID, Limit: limit})
}

// UpsertNodeExecution inserts or, if one with the same ID exists for the
// execution, overwrites a NodeExecution row in place — retries reuse the
// row (§4.4 step 6) rather than appending a new one.
func (s *MemoryStore) UpsertNodeExecution(ctx context.Context, ne types.NodeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.nodes[ne.ExecutionID]
	for i, existing := range rows {
		if existing.ID == ne.ID {
			rows[i] = ne
			s.nodes[ne.ExecutionID] = rows
			return nil
		}
	}
	s.nodes[ne.ExecutionID] = append(rows, ne)
	return nil
}

// ListNodeExecutions returns every NodeExecution for an execution, in
// ExecutionOrder.
func (s *MemoryStore) ListNodeExecutions(ctx context.Context, executionID string) ([]types.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := append([]types.NodeExecution{}, s.nodes[executionID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExecutionOrder < rows[j].ExecutionOrder })
	return rows, nil
}

// AppendLogs appends a batch of ExecutionLog rows, preserving arrival
// order as the tiebreak for equal timestamps (§3 invariant).
func (s *MemoryStore) AppendLogs(ctx context.Context, logs []types.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range logs {
		s.logs[l.ExecutionID] = append(s.logs[l.ExecutionID], l)
	}
	return nil
}

// ListLogs returns logs for an execution at or above minLevel, in
// (Timestamp, Seq) order.
func (s *MemoryStore) ListLogs(ctx context.Context, executionID string, minLevel types.LogLevel) ([]types.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ExecutionLog, 0)
	for _, l := range s.logs[executionID] {
		if minLevel == "" || l.Level.AtLeast(minLevel) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Stats computes aggregate statistics for a workflow, or globally when
// workflowID is empty.
func (s *MemoryStore) Stats(ctx context.Context, workflowID string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{WorkflowID: workflowID, MinDurationMS: -1}
	var totalDuration int64

	for _, exec := range s.executions {
		if workflowID != "" && exec.WorkflowID != workflowID {
			continue
		}
		stats.Total++
		switch exec.Status {
		case types.ExecutionSuccess:
			stats.Succeeded++
		case types.ExecutionError, types.ExecutionTimeout:
			stats.Failed++
		case types.ExecutionRunning, types.ExecutionPending:
			stats.Running++
		case types.ExecutionCanceled:
			stats.Canceled++
		}
		if exec.Status.IsTerminal() {
			totalDuration += exec.DurationMS
			if stats.MinDurationMS < 0 || exec.DurationMS < stats.MinDurationMS {
				stats.MinDurationMS = exec.DurationMS
			}
			if exec.DurationMS > stats.MaxDurationMS {
				stats.MaxDurationMS = exec.DurationMS
			}
			if stats.LastExecutedAt == nil || exec.StartedAt.After(*stats.LastExecutedAt) {
				started := exec.StartedAt
				stats.LastExecutedAt = &started
			}
		}
	}

	terminal := stats.Succeeded + stats.Failed + stats.Canceled
	if terminal > 0 {
		stats.AvgDurationMS = float64(totalDuration) / float64(terminal)
		stats.SuccessRate = float64(stats.Succeeded) / float64(terminal)
	}
	if stats.MinDurationMS < 0 {
		stats.MinDurationMS = 0
	}
	return stats, nil
}

// PurgeOlderThan deletes every execution (and its node executions/logs)
// that finished before cutoff.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, exec := range s.executions {
		if exec.FinishedAt != nil && exec.FinishedAt.Before(cutoff) {
			delete(s.executions, id)
			delete(s.nodes, id)
			delete(s.logs, id)
			purged++
		}
	}
	return purged, nil
}
