package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// Graph holds the tasks of a single run and their dependency edges.
// Structure is fixed at construction; only task statuses change afterwards.
type Graph struct {
	mu         sync.RWMutex
	order      []string            // Task IDs in input order
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Maps taskID -> list of tasks that depend on it
}

// NewGraph builds a graph from tasks in input order.
// Returns error if a task ID is empty or already present.
func NewGraph(tasks []*Task) (*Graph, error) {
	g := &Graph{
		order:      make([]string, 0, len(tasks)),
		tasks:      make(map[string]*Task, len(tasks)),
		dependents: make(map[string][]string),
	}

	for _, task := range tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("%w: task %q has an empty id", ErrInvalidGraph, task.Name)
		}
		if _, exists := g.tasks[task.ID]; exists {
			return nil, &DuplicateIDError{ID: task.ID}
		}

		t := cloneTask(task)
		t.DependsOn = dedupe(t.DependsOn)
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)

		// Build dependents map for efficient downstream lookup
		for _, depID := range t.DependsOn {
			g.dependents[depID] = append(g.dependents[depID], t.ID)
		}
	}

	return g, nil
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Get returns task by ID.
func (g *Graph) Get(taskID string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns all tasks in input order.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, cloneTask(g.tasks[id]))
	}
	return tasks
}

// Dependents returns the IDs of tasks that directly depend on taskID.
func (g *Graph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[taskID]...)
}

// Order returns task IDs in a topological order using gammazero/toposort.
// Returns error if a dependency is missing or a cycle exists.
func (g *Graph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, taskID := range g.order {
		for _, depID := range g.tasks[taskID].DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, &UnknownDependencyError{TaskID: taskID, DependencyID: depID}
			}
		}
	}

	var edges []toposort.Edge
	for _, taskID := range g.order {
		task := g.tasks[taskID]
		if len(task.DependsOn) == 0 {
			// Root task - edge from nil keeps it in the result
			edges = append(edges, toposort.Edge{nil, taskID})
			continue
		}
		for _, depID := range task.DependsOn {
			// Edge (depID, taskID) means depID must come before taskID
			edges = append(edges, toposort.Edge{depID, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(g.order) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, id := range g.order {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: topological sort lost %d tasks: %s", ErrInvalidGraph, len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// MarkRunning moves a pending task to running.
func (g *Graph) MarkRunning(taskID string) error {
	return g.transition(taskID, TaskPending, TaskRunning)
}

// MarkSucceeded moves a running task to succeeded.
func (g *Graph) MarkSucceeded(taskID string) error {
	return g.transition(taskID, TaskRunning, TaskSucceeded)
}

// MarkFailed moves a running task to failed.
func (g *Graph) MarkFailed(taskID string) error {
	return g.transition(taskID, TaskRunning, TaskFailed)
}

func (g *Graph) transition(taskID string, from, to TaskStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if task.Status != from {
		return fmt.Errorf("task %q cannot move from %s to %s", taskID, task.Status, to)
	}

	task.Status = to
	return nil
}

// Counts returns the number of tasks per status.
func (g *Graph) Counts() map[TaskStatus]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[TaskStatus]int, 4)
	for _, task := range g.tasks {
		counts[task.Status]++
	}
	return counts
}

// dedupe drops repeated IDs, keeping first occurrence order.
func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
