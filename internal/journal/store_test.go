package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/coordinator/internal/coordinator"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleRun(id string, startedAt time.Time) coordinator.RunResult {
	return coordinator.RunResult{
		RunID:         id,
		Success:       false,
		Parallelism:   2,
		Waves:         1,
		SkippedWaves:  1,
		StartedAt:     startedAt,
		TotalDuration: 1500 * time.Millisecond,
		Error:         `task failed: "email" in wave 0: mailbox full`,
		Results: []coordinator.TaskResult{
			{
				TaskID:     "weather",
				Agent:      "weather",
				Success:    true,
				Output:     map[string]any{"forecast": "sunny", "high": 24.0},
				StartedAt:  startedAt,
				FinishedAt: startedAt.Add(time.Second),
				Duration:   time.Second,
			},
			{
				TaskID:     "email",
				Agent:      "email",
				Success:    false,
				Error:      "mailbox full",
				StartedAt:  startedAt,
				FinishedAt: startedAt.Add(200 * time.Millisecond),
				Duration:   200 * time.Millisecond,
			},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, sampleRun("run-1", started)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}

	if run.Success || run.Parallelism != 2 || run.Waves != 1 || run.SkippedWaves != 1 {
		t.Errorf("run fields = %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if run.TotalDuration != 1500*time.Millisecond || run.TotalDurationMs != 1500 {
		t.Errorf("duration = %v / %dms", run.TotalDuration, run.TotalDurationMs)
	}
	if run.Err == nil || run.Err.Error() != run.Error {
		t.Errorf("Err not restored: %v", run.Err)
	}

	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	if run.Results[0].TaskID != "weather" || run.Results[1].TaskID != "email" {
		t.Errorf("results out of order: %s, %s", run.Results[0].TaskID, run.Results[1].TaskID)
	}

	out, ok := run.Results[0].Output.(map[string]any)
	if !ok || out["forecast"] != "sunny" || out["high"] != 24.0 {
		t.Errorf("output = %#v", run.Results[0].Output)
	}
	if run.Results[1].Output != nil {
		t.Errorf("nil output should stay nil, got %#v", run.Results[1].Output)
	}
	if run.Results[1].Error != "mailbox full" || run.Results[1].DurationMs != 200 {
		t.Errorf("failed result = %+v", run.Results[1])
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Now())

	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("first Record() error: %v", err)
	}

	run.Success = true
	run.Error = ""
	run.Results = run.Results[:1]
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("second Record() error: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if !got.Success || got.Err != nil || len(got.Results) != 1 {
		t.Errorf("run not replaced: %+v", got)
	}
}

func TestRecordInvalidRunWithoutResults(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	run := coordinator.RunResult{
		RunID:     "bad",
		StartedAt: time.Now(),
		Error:     `invalid task graph: circular dependency detected involving task "a" (a -> a)`,
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	got, err := store.GetRun(ctx, "bad")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Results == nil || len(got.Results) != 0 {
		t.Errorf("expected empty results, got %#v", got.Results)
	}
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"oldest", "middle", "newest"} {
		if err := store.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record(%s) error: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "newest" || runs[2].RunID != "oldest" {
		t.Errorf("order = %s, %s, %s", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
	if runs[0].Tasks != 2 || runs[0].FailedTasks != 1 {
		t.Errorf("task counts = %d/%d, want 2/1", runs[0].Tasks, runs[0].FailedTasks)
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) error: %v", err)
	}
	if len(limited) != 2 || limited[1].RunID != "middle" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestPrune(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record(%s) error: %v", id, err)
		}
	}

	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if _, err := store.GetRun(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("pruned run still present: %v", err)
	}

	var orphans int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_results WHERE run_id != 'c'`).Scan(&orphans); err != nil {
		t.Fatalf("counting task results: %v", err)
	}
	if orphans != 0 {
		t.Errorf("task results of pruned runs left behind: %d", orphans)
	}
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	if err := store.Record(ctx, sampleRun("persisted", time.Now())); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetRun(ctx, "persisted"); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}

func TestJournalRecordsCoordinatorRuns(t *testing.T) {
	store := testStore(t)
	c := coordinator.New(coordinator.Options{Journal: store})

	res := c.Run(context.Background(), nil)

	got, err := store.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("coordinator run not journaled: %v", err)
	}
	if got.Success != res.Success {
		t.Errorf("Success = %v, want %v", got.Success, res.Success)
	}
}
