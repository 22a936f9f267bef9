package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/coordinator/internal/coordinator"
)

// Record saves a settled run and its task results.
// Recording the same run ID again replaces the earlier entry.
func (s *SQLiteStore) Record(ctx context.Context, result coordinator.RunResult) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, success, parallelism, waves, skipped_waves, error, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success = excluded.success,
			parallelism = excluded.parallelism,
			waves = excluded.waves,
			skipped_waves = excluded.skipped_waves,
			error = excluded.error,
			started_at = excluded.started_at,
			duration_ns = excluded.duration_ns
	`, result.RunID, result.Success, result.Parallelism, result.Waves, result.SkippedWaves,
		result.Error, unixNano(result.StartedAt), int64(result.TotalDuration))
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", result.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_results WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("failed to delete old task results: %w", err)
	}

	for i, res := range result.Results {
		output, err := encodeOutput(res.Output)
		if err != nil {
			return fmt.Errorf("failed to encode output of task %s: %w", res.TaskID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_results (run_id, task_id, position, agent, success, output, error, started_at, finished_at, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, result.RunID, res.TaskID, i, res.Agent, res.Success, output, res.Error,
			unixNano(res.StartedAt), unixNano(res.FinishedAt), int64(res.Duration))
		if err != nil {
			return fmt.Errorf("failed to insert result of task %s: %w", res.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun loads a recorded run with its task results in execution order.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*coordinator.RunResult, error) {
	run := &coordinator.RunResult{RunID: runID, Results: []coordinator.TaskResult{}}
	var startedAt, durationNs int64

	err := s.db.QueryRowContext(ctx, `
		SELECT success, parallelism, waves, skipped_waves, error, started_at, duration_ns
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.Success, &run.Parallelism, &run.Waves, &run.SkippedWaves, &run.Error, &startedAt, &durationNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt = fromUnixNano(startedAt)
	run.TotalDuration = time.Duration(durationNs)
	run.TotalDurationMs = run.TotalDuration.Milliseconds()
	if run.Error != "" {
		run.Err = errors.New(run.Error)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, agent, success, output, error, started_at, finished_at, duration_ns
		FROM task_results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res                    coordinator.TaskResult
			output                 sql.NullString
			started, finished, dur int64
		)
		if err := rows.Scan(&res.TaskID, &res.Agent, &res.Success, &output, &res.Error, &started, &finished, &dur); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		if output.Valid {
			if err := json.Unmarshal([]byte(output.String), &res.Output); err != nil {
				return nil, fmt.Errorf("failed to decode output of task %s: %w", res.TaskID, err)
			}
		}
		res.StartedAt = fromUnixNano(started)
		res.FinishedAt = fromUnixNano(finished)
		res.Duration = time.Duration(dur)
		res.DurationMs = res.Duration.Milliseconds()
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task results: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all of them.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.success, r.parallelism, r.waves, r.skipped_waves, r.error, r.started_at, r.duration_ns,
			(SELECT COUNT(*) FROM task_results t WHERE t.run_id = r.id),
			(SELECT COUNT(*) FROM task_results t WHERE t.run_id = r.id AND t.success = 0)
		FROM runs r
		ORDER BY r.started_at DESC, r.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			sum                 RunSummary
			startedAt, duration int64
		)
		if err := rows.Scan(&sum.RunID, &sum.Success, &sum.Parallelism, &sum.Waves, &sum.SkippedWaves,
			&sum.Error, &startedAt, &duration, &sum.Tasks, &sum.FailedTasks); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = fromUnixNano(startedAt)
		sum.TotalDuration = time.Duration(duration)
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Prune deletes all but the keep most recent runs and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func encodeOutput(output any) (sql.NullString, error) {
	if output == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
