// Package report renders runs, plans and run history for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/coordinator/internal/coordinator"
	"github.com/aristath/coordinator/internal/journal"
	"github.com/aristath/coordinator/internal/scheduler"
)

const barWidth = 40

// RenderRun writes a run summary. total is the number of tasks submitted;
// tasks without a result never started.
func RenderRun(w io.Writer, res coordinator.RunResult, total int) error {
	var b strings.Builder

	status := StyleStatusComplete.Render("SUCCEEDED")
	if !res.Success {
		status = StyleStatusFailed.Render("FAILED")
	}
	title := StyleTitle.Render("Run " + res.RunID)
	header := fmt.Sprintf("%s %s", title, status)
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(header)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n\n", StyleMuted.Render(fmt.Sprintf("%d waves, parallelism %d, %s",
		res.Waves, res.Parallelism, formatDuration(res.TotalDuration))))

	idWidth, agentWidth := 0, 0
	for _, r := range res.Results {
		idWidth = max(idWidth, len(r.TaskID))
		agentWidth = max(agentWidth, len(r.Agent))
	}

	succeeded, failed := 0, 0
	for _, r := range res.Results {
		mark := StyleStatusComplete.Render("ok  ")
		if r.Success {
			succeeded++
		} else {
			failed++
			mark = StyleStatusFailed.Render("fail")
		}

		line := fmt.Sprintf("  %s %s  %s  %s", mark, pad(r.TaskID, idWidth), pad(r.Agent, agentWidth),
			StyleMuted.Render(formatDuration(r.Duration)))
		if !r.Success && r.Error != "" {
			line += "  " + StyleStatusFailed.Render(r.Error)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if total < len(res.Results) {
		total = len(res.Results)
	}
	notStarted := total - len(res.Results)

	if total > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%s]  %d/%d succeeded", progressBar(succeeded, failed, total), succeeded, total)
		if failed > 0 {
			fmt.Fprintf(&b, ", %s", StyleStatusFailed.Render(fmt.Sprintf("%d failed", failed)))
		}
		if notStarted > 0 {
			fmt.Fprintf(&b, ", %s", StyleStatusPending.Render(fmt.Sprintf("%d not started", notStarted)))
		}
		b.WriteString("\n")
	}

	if res.Error != "" {
		fmt.Fprintf(&b, "\n%s %s\n", StyleStatusFailed.Render("error:"), res.Error)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderPlan writes the wave layout of a validated graph and one
// topological order of its tasks.
func RenderPlan(w io.Writer, waves []scheduler.Wave, order []string) error {
	var b strings.Builder

	tasks := 0
	for _, wave := range waves {
		tasks += len(wave)
	}

	title := StyleTitle.Render(fmt.Sprintf("Plan: %d tasks in %d waves, parallelism %d",
		tasks, len(waves), scheduler.Parallelism(waves)))
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	for i, wave := range waves {
		fmt.Fprintf(&b, "\n%s\n", StyleWave.Render(fmt.Sprintf("Wave %d", i)))
		for _, task := range wave {
			line := fmt.Sprintf("  %s %s", task.ID, StyleMuted.Render("("+task.Agent+")"))
			if len(task.DependsOn) > 0 {
				line += StyleMuted.Render(" after " + strings.Join(task.DependsOn, ", "))
			}
			if len(task.Resources) > 0 {
				line += StyleStatusRunning.Render(" holds " + strings.Join(task.Resources, ", "))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(order) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", StyleTitle.Render("Order:"), strings.Join(order, " -> "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHistory writes one line per recorded run, most recent first.
func RenderHistory(w io.Writer, runs []journal.RunSummary) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, StyleMuted.Render("No runs recorded.")+"\n")
		return err
	}

	var b strings.Builder
	for _, run := range runs {
		status := StyleStatusComplete.Render("ok  ")
		if !run.Success {
			status = StyleStatusFailed.Render("fail")
		}

		fmt.Fprintf(&b, "%s %s  %s  %d tasks", status, run.RunID,
			StyleMuted.Render(run.StartedAt.Local().Format(time.DateTime)), run.Tasks)
		if run.FailedTasks > 0 {
			fmt.Fprintf(&b, " (%s)", StyleStatusFailed.Render(fmt.Sprintf("%d failed", run.FailedTasks)))
		}
		fmt.Fprintf(&b, ", %d waves, parallelism %d, %s", run.Waves, run.Parallelism, formatDuration(run.TotalDuration))
		if run.Error != "" {
			b.WriteString("\n     ")
			b.WriteString(StyleMuted.Render(run.Error))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func progressBar(succeeded, failed, total int) string {
	completedWidth := (succeeded * barWidth) / total
	failedWidth := (failed * barWidth) / total
	pendingWidth := barWidth - completedWidth - failedWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
	return bar
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-len(s)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
