package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcraft/workflow-core/pkg/types"
)

// DB abstracts the pool operations PostgresStore needs — satisfied by
// *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore is a durable, pgx/v5-backed Store.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps an existing pool (or pgxmock double).
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPool opens a connection pool against uri and verifies
// connectivity with a ping, the way the teacher's db.Connect does.
func ConnectPool(ctx context.Context, uri string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("journal: parse/create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) CreateExecution(ctx context.Context, exec types.WorkflowExecution) error {
	path, err := json.Marshal(exec.ExecutionPath)
	if err != nil {
		return fmt.Errorf("journal: marshal execution_path: %w", err)
	}
	trigger, err := json.Marshal(exec.TriggerData)
	if err != nil {
		return fmt.Errorf("journal: marshal trigger_data: %w", err)
	}

	_, err = s.db.Exec(ctx, `
        INSERT INTO workflow_executions (
            id, workflow_id, environment, status, started_at, finished_at,
            trigger_mode, trigger_data, error_message, duration_ms,
            executed, skipped, failed, execution_path
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		exec.ID, exec.WorkflowID, exec.Environment, exec.Status, exec.StartedAt, exec.FinishedAt,
		exec.TriggerMode, trigger, exec.ErrorMessage, exec.DurationMS,
		exec.Executed, exec.Skipped, exec.Failed, path)
	if err != nil {
		return fmt.Errorf("journal: insert execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, exec types.WorkflowExecution) error {
	path, err := json.Marshal(exec.ExecutionPath)
	if err != nil {
		return fmt.Errorf("journal: marshal execution_path: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
        UPDATE workflow_executions SET
            status = $2, finished_at = $3, error_message = $4, duration_ms = $5,
            executed = $6, skipped = $7, failed = $8, execution_path = $9
        WHERE id = $1`,
		exec.ID, exec.Status, exec.FinishedAt, exec.ErrorMessage, exec.DurationMS,
		exec.Executed, exec.Skipped, exec.Failed, path)
	if err != nil {
		return fmt.Errorf("journal: update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("journal: execution %s not found", exec.ID)
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, id string, includeNodes, includeLogs bool) (*ExecutionDetail, error) {
	exec, err := s.scanExecution(ctx, s.db.QueryRow(ctx, `
        SELECT id, workflow_id, environment, status, started_at, finished_at,
               trigger_mode, trigger_data, error_message, duration_ms,
               executed, skipped, failed, execution_path
        FROM workflow_executions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	detail := &ExecutionDetail{Execution: *exec}
	if includeNodes {
		nodes, err := s.ListNodeExecutions(ctx, id)
		if err != nil {
			return nil, err
		}
		detail.NodeExecutions = nodes
	}
	if includeLogs {
		logs, err := s.ListLogs(ctx, id, "")
		if err != nil {
			return nil, err
		}
		detail.Logs = logs
	}
	return detail, nil
}

func (s *PostgresStore) scanExecution(ctx context.Context, row pgx.Row) (*types.WorkflowExecution, error) {
	var exec types.WorkflowExecution
	var triggerRaw, pathRaw []byte
	err := row.Scan(
		&exec.ID, &exec.WorkflowID, &exec.Environment, &exec.Status, &exec.StartedAt, &exec.FinishedAt,
		&exec.TriggerMode, &triggerRaw, &exec.ErrorMessage, &exec.DurationMS,
		&exec.Executed, &exec.Skipped, &exec.Failed, &pathRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: scan execution: %w", err)
	}
	if len(triggerRaw) > 0 {
		if err := json.Unmarshal(triggerRaw, &exec.TriggerData); err != nil {
			return nil, fmt.Errorf("journal: unmarshal trigger_data: %w", err)
		}
	}
	if len(pathRaw) > 0 {
		if err := json.Unmarshal(pathRaw, &exec.ExecutionPath); err != nil {
			return nil, fmt.Errorf("journal: unmarshal execution_path: %w", err)
		}
	}
	return &exec, nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, filter ListFilter) ([]types.WorkflowExecution, error) {
	sql := `SELECT id, workflow_id, environment, status, started_at, finished_at,
               trigger_mode, trigger_data, error_message, duration_ms,
               executed, skipped, failed, execution_path
        FROM workflow_executions WHERE 1=1`
	args := make([]any, 0, 8)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.WorkflowID != "" {
		sql += " AND workflow_id = " + arg(filter.WorkflowID)
	}
	if filter.Status != "" {
		sql += " AND status = " + arg(filter.Status)
	}
	if filter.Environment != "" {
		sql += " AND environment = " + arg(filter.Environment)
	}
	if !filter.Since.IsZero() {
		sql += " AND started_at >= " + arg(filter.Since)
	}
	if !filter.Until.IsZero() {
		sql += " AND started_at <= " + arg(filter.Until)
	}
	sql += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		sql += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		sql += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list executions: %w", err)
	}
	defer rows.Close()

	out := make([]types.WorkflowExecution, 0)
	for rows.Next() {
		exec, err := s.scanExecution(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentByWorkflow(ctx context.Context, workflowID string, limit int) ([]types.WorkflowExecution, error) {
	return s.ListExecutions(ctx, ListFilter{WorkflowID: workflowID, Limit: limit})
}

func (s *PostgresStore) UpsertNodeExecution(ctx context.Context, ne types.NodeExecution) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO node_executions (
            id, execution_id, node_id, node_name, status, started_at, finished_at,
            input_data, output_data, error_message, retry_count, duration_ms, execution_order
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            finished_at = EXCLUDED.finished_at,
            output_data = EXCLUDED.output_data,
            error_message = EXCLUDED.error_message,
            retry_count = EXCLUDED.retry_count,
            duration_ms = EXCLUDED.duration_ms`,
		ne.ID, ne.ExecutionID, ne.NodeID, ne.NodeName, ne.Status, ne.StartedAt, ne.FinishedAt,
		marshalOrNil(ne.InputData), marshalOrNil(ne.OutputData), ne.ErrorMessage, ne.RetryCount, ne.DurationMS, ne.ExecutionOrder)
	if err != nil {
		return fmt.Errorf("journal: upsert node execution: %w", err)
	}
	return nil
}

func marshalOrNil(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func (s *PostgresStore) ListNodeExecutions(ctx context.Context, executionID string) ([]types.NodeExecution, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, execution_id, node_id, node_name, status, started_at, finished_at,
               input_data, output_data, error_message, retry_count, duration_ms, execution_order
        FROM node_executions WHERE execution_id = $1 ORDER BY execution_order ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("journal: list node executions: %w", err)
	}
	defer rows.Close()

	out := make([]types.NodeExecution, 0)
	for rows.Next() {
		var ne types.NodeExecution
		var inputRaw, outputRaw []byte
		if err := rows.Scan(
			&ne.ID, &ne.ExecutionID, &ne.NodeID, &ne.NodeName, &ne.Status, &ne.StartedAt, &ne.FinishedAt,
			&inputRaw, &outputRaw, &ne.ErrorMessage, &ne.RetryCount, &ne.DurationMS, &ne.ExecutionOrder,
		); err != nil {
			return nil, fmt.Errorf("journal: scan node execution: %w", err)
		}
		if len(inputRaw) > 0 {
			_ = json.Unmarshal(inputRaw, &ne.InputData)
		}
		if len(outputRaw) > 0 {
			_ = json.Unmarshal(outputRaw, &ne.OutputData)
		}
		out = append(out, ne)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendLogs(ctx context.Context, logs []types.ExecutionLog) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
            INSERT INTO execution_logs (id, execution_id, seq, timestamp, level, message, node_id, node_name, metadata)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, l.ExecutionID, l.Seq, l.Timestamp, l.Level, l.Message, l.NodeID, l.NodeName, marshalOrNil(l.Metadata))
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("journal: append logs: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, executionID string, minLevel types.LogLevel) ([]types.ExecutionLog, error) {
	sql := `SELECT id, execution_id, seq, timestamp, level, message, node_id, node_name, metadata
        FROM execution_logs WHERE execution_id = $1`
	args := []any{executionID}
	if minLevel != "" {
		sql += " AND level = ANY($2)"
		args = append(args, levelsAtLeast(minLevel))
	}
	sql += " ORDER BY timestamp ASC, seq ASC"

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list logs: %w", err)
	}
	defer rows.Close()

	out := make([]types.ExecutionLog, 0)
	for rows.Next() {
		var l types.ExecutionLog
		var metaRaw []byte
		if err := rows.Scan(&l.ID, &l.ExecutionID, &l.Seq, &l.Timestamp, &l.Level, &l.Message, &l.NodeID, &l.NodeName, &metaRaw); err != nil {
			return nil, fmt.Errorf("journal: scan log: %w", err)
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &l.Metadata)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// levelsAtLeast expands a minimum severity into the set of levels the
// SQL ANY() clause should accept — the level ordering is small and fixed
// so this avoids a second round trip to rank it in SQL.
func levelsAtLeast(min types.LogLevel) []string {
	order := []types.LogLevel{types.LogTrace, types.LogDebug, types.LogInfo, types.LogWarn, types.LogError}
	out := make([]string, 0, len(order))
	keep := false
	for _, l := range order {
		if l == min {
			keep = true
		}
		if keep {
			out = append(out, string(l))
		}
	}
	return out
}

func (s *PostgresStore) Stats(ctx context.Context, workflowID string) (Stats, error) {
	sql := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'success'),
            COUNT(*) FILTER (WHERE status IN ('error','timeout')),
            COUNT(*) FILTER (WHERE status IN ('running','pending')),
            COUNT(*) FILTER (WHERE status = 'canceled'),
            COALESCE(AVG(duration_ms) FILTER (WHERE status IN ('success','error','canceled','timeout')), 0),
            COALESCE(MIN(duration_ms) FILTER (WHERE status IN ('success','error','canceled','timeout')), 0),
            COALESCE(MAX(duration_ms) FILTER (WHERE status IN ('success','error','canceled','timeout')), 0),
            MAX(started_at) FILTER (WHERE status IN ('success','error','canceled','timeout'))
        FROM workflow_executions`
	args := []any{}
	if workflowID != "" {
		sql += " WHERE workflow_id = $1"
		args = append(args, workflowID)
	}

	stats := Stats{WorkflowID: workflowID}
	var last *time.Time
	err := s.db.QueryRow(ctx, sql, args...).Scan(
		&stats.Total, &stats.Succeeded, &stats.Failed, &stats.Running, &stats.Canceled,
		&stats.AvgDurationMS, &stats.MinDurationMS, &stats.MaxDurationMS, &last,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	stats.LastExecutedAt = last

	terminal := stats.Succeeded + stats.Failed + stats.Canceled
	if terminal > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(terminal)
	}
	return stats, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM workflow_executions WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
