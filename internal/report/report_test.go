package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aristath/coordinator/internal/coordinator"
	"github.com/aristath/coordinator/internal/journal"
	"github.com/aristath/coordinator/internal/scheduler"
)

func TestRenderRun(t *testing.T) {
	res := coordinator.RunResult{
		RunID:         "run-42",
		Success:       false,
		Waves:         1,
		Parallelism:   2,
		TotalDuration: 1250 * time.Millisecond,
		Error:         `task failed: "email" in wave 0: mailbox full`,
		Err:           errors.New("task failed"),
		Results: []coordinator.TaskResult{
			{TaskID: "weather", Agent: "weather", Success: true, Duration: 120 * time.Millisecond},
			{TaskID: "email", Agent: "mailer", Success: false, Error: "mailbox full", Duration: 5 * time.Millisecond},
		},
	}

	var buf bytes.Buffer
	if err := RenderRun(&buf, res, 4); err != nil {
		t.Fatalf("RenderRun() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Run run-42",
		"FAILED",
		"1 waves, parallelism 2, 1.25s",
		"weather",
		"mailbox full",
		"1/4 succeeded",
		"1 failed",
		"2 not started",
		`error: task failed: "email"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRunSuccess(t *testing.T) {
	res := coordinator.RunResult{
		RunID:   "ok-run",
		Success: true,
		Results: []coordinator.TaskResult{{TaskID: "a", Agent: "echo", Success: true}},
	}

	var buf bytes.Buffer
	if err := RenderRun(&buf, res, 1); err != nil {
		t.Fatalf("RenderRun() error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "SUCCEEDED") || !strings.Contains(out, "1/1 succeeded") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "error:") || strings.Contains(out, "not started") {
		t.Errorf("success output mentions failure:\n%s", out)
	}
}

func TestRenderPlan(t *testing.T) {
	a := scheduler.NewTask(scheduler.TaskSpec{ID: "a", Agent: "echo"})
	b := scheduler.NewTask(scheduler.TaskSpec{ID: "b", Agent: "echo", Dependencies: []string{"a"}, Resources: []string{"db"}})
	c := scheduler.NewTask(scheduler.TaskSpec{ID: "c", Agent: "mail", Dependencies: []string{"a"}})
	waves := []scheduler.Wave{{a}, {b, c}}

	var buf bytes.Buffer
	if err := RenderPlan(&buf, waves, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("RenderPlan() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"3 tasks in 2 waves, parallelism 2",
		"Wave 0",
		"Wave 1",
		"after a",
		"holds db",
		"a -> b -> c",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Wave 1") > strings.Index(out, "  c ") {
		t.Errorf("task c listed before its wave:\n%s", out)
	}
}

func TestRenderHistory(t *testing.T) {
	var empty bytes.Buffer
	if err := RenderHistory(&empty, nil); err != nil {
		t.Fatalf("RenderHistory() error: %v", err)
	}
	if !strings.Contains(empty.String(), "No runs recorded") {
		t.Errorf("unexpected empty output: %q", empty.String())
	}

	runs := []journal.RunSummary{
		{RunID: "r2", Success: false, Tasks: 3, FailedTasks: 1, Waves: 2, Parallelism: 2, StartedAt: time.Now(), Error: "task failed"},
		{RunID: "r1", Success: true, Tasks: 1, Waves: 1, Parallelism: 1, StartedAt: time.Now().Add(-time.Hour)},
	}

	var buf bytes.Buffer
	if err := RenderHistory(&buf, runs); err != nil {
		t.Fatalf("RenderHistory() error: %v", err)
	}
	out := buf.String()

	if strings.Index(out, "r2") > strings.Index(out, "r1") {
		t.Errorf("history out of order:\n%s", out)
	}
	if !strings.Contains(out, "1 failed") || !strings.Contains(out, "task failed") {
		t.Errorf("failure details missing:\n%s", out)
	}
}
