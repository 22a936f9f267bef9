package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/coordinator/internal/events"
)

// busClosedMsg is delivered when the event subscription ends.
type busClosedMsg struct{}

// ProgressModel is a Bubble Tea model showing a run's live progress.
// It reads run and task events from an event bus subscription and quits
// when the run completes or the bus closes.
type ProgressModel struct {
	sub      <-chan events.Event
	spinner  spinner.Model
	total    int
	waves    int
	wave     int
	waveSize int

	succeeded int
	running   int
	failed    int

	failures []string
	done     bool
	success  bool
	duration time.Duration
}

// NewProgressModel creates a progress model reading from sub.
func NewProgressModel(sub <-chan events.Event) ProgressModel {
	return ProgressModel{
		sub:     sub,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StyleStatusRunning)),
		wave:    -1,
	}
}

// Init starts the spinner and waits for the first event.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.sub))
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Update folds events into the model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case busClosedMsg:
		m.done = true
		return m, tea.Quit

	case events.RunStartedEvent:
		m.total = msg.Tasks
		m.waves = msg.Waves

	case events.WaveStartedEvent:
		m.wave = msg.Index
		m.waveSize = len(msg.TaskIDs)

	case events.RunProgressEvent:
		m.total = msg.Total
		m.succeeded = msg.Succeeded
		m.running = msg.Running
		m.failed = msg.Failed

	case events.TaskFailedEvent:
		m.failures = append(m.failures, fmt.Sprintf("%s: %s", msg.ID, msg.Err))

	case events.RunCompletedEvent:
		m.done = true
		m.success = msg.Success
		m.duration = msg.Duration
		return m, tea.Quit
	}

	return m, waitForEvent(m.sub)
}

// View renders the progress block.
func (m ProgressModel) View() string {
	var b strings.Builder

	switch {
	case m.done && m.success:
		b.WriteString(StyleStatusComplete.Render("done"))
	case m.done:
		b.WriteString(StyleStatusFailed.Render("failed"))
	default:
		b.WriteString(m.spinner.View())
	}

	if m.wave >= 0 {
		fmt.Fprintf(&b, " %s", StyleWave.Render(fmt.Sprintf("wave %d/%d", m.wave+1, m.waves)))
		fmt.Fprintf(&b, " %s", StyleMuted.Render(fmt.Sprintf("(%d tasks)", m.waveSize)))
	}
	if m.total > 0 {
		fmt.Fprintf(&b, "  [%s] %d/%d", progressBar(m.succeeded, m.failed, m.total), m.succeeded, m.total)
	}
	if m.running > 0 {
		fmt.Fprintf(&b, "  %s", StyleStatusRunning.Render(fmt.Sprintf("%d running", m.running)))
	}
	if m.done && m.duration > 0 {
		fmt.Fprintf(&b, "  %s", formatDuration(m.duration))
	}
	b.WriteString("\n")

	for _, f := range m.failures {
		b.WriteString("  " + StyleStatusFailed.Render("x") + " " + f + "\n")
	}

	return b.String()
}

// Succeeded reports the number of tasks seen succeeding.
func (m ProgressModel) Succeeded() int { return m.succeeded }

// Failures returns one "id: error" line per failed task.
func (m ProgressModel) Failures() []string { return m.failures }

// PrintProgress writes one line per wave and failed task until ch closes.
// It is the plain fallback when output is not a terminal.
func PrintProgress(w io.Writer, ch <-chan events.Event) {
	for ev := range ch {
		switch e := ev.(type) {
		case events.RunStartedEvent:
			fmt.Fprintf(w, "%d tasks in %d waves\n", e.Tasks, e.Waves)
		case events.WaveStartedEvent:
			fmt.Fprintf(w, "wave %d: %d tasks\n", e.Index, len(e.TaskIDs))
		case events.TaskFailedEvent:
			fmt.Fprintf(w, "  %s failed: %s\n", e.ID, e.Err)
		case events.WaveCompletedEvent:
			fmt.Fprintf(w, "wave %d done in %s\n", e.Index, e.Duration.Round(time.Millisecond))
		}
	}
}
