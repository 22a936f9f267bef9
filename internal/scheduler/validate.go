package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is matched by every graph validation error.
var ErrInvalidGraph = errors.New("invalid task graph")

// DuplicateIDError reports a task ID used more than once.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrInvalidGraph }

// UnknownDependencyError reports a dependency on a task that is not in the graph.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on non-existent task %q", e.TaskID, e.DependencyID)
}

func (e *UnknownDependencyError) Is(target error) bool { return target == ErrInvalidGraph }

// CircularDependencyError reports tasks that can never become ready.
// Cycle is one concrete loop through the unresolved tasks with the first
// element repeated at the end; TaskID is its first member. Unresolved also
// lists tasks that only wait on a cycle.
type CircularDependencyError struct {
	TaskID     string
	Cycle      []string
	Unresolved []string
}

func (e *CircularDependencyError) Error() string {
	msg := fmt.Sprintf("circular dependency detected involving task %q", e.TaskID)
	if len(e.Cycle) > 0 {
		msg += " (" + strings.Join(e.Cycle, " -> ") + ")"
	}
	return msg
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrInvalidGraph }

// Validate checks a task list before execution: empty and duplicate IDs,
// dangling dependency references, then cycles via Kahn's algorithm.
// It does not modify the tasks.
func Validate(tasks []*Task) error {
	index := make(map[string]*Task, len(tasks))
	for i, task := range tasks {
		if task.ID == "" {
			return fmt.Errorf("%w: task at position %d has an empty id", ErrInvalidGraph, i)
		}
		if _, exists := index[task.ID]; exists {
			return &DuplicateIDError{ID: task.ID}
		}
		index[task.ID] = task
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := index[depID]; !exists {
				return &UnknownDependencyError{TaskID: task.ID, DependencyID: depID}
			}
		}
	}

	// remaining counts unresolved dependencies per task
	remaining := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	deps := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		d := dedupe(append([]string(nil), task.DependsOn...))
		deps[task.ID] = d
		remaining[task.ID] = len(d)
		for _, depID := range d {
			dependents[depID] = append(dependents[depID], task.ID)
		}
	}

	queue := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if remaining[task.ID] == 0 {
			queue = append(queue, task.ID)
		}
	}

	processed := make(map[string]bool, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed[id] = true

		for _, dependent := range dependents[id] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(processed) == len(tasks) {
		return nil
	}

	var unresolved []string
	for _, task := range tasks {
		if !processed[task.ID] {
			unresolved = append(unresolved, task.ID)
		}
	}

	cycle := findCycle(unresolved[0], deps, processed)
	involved := unresolved[0]
	if len(cycle) > 0 {
		involved = cycle[0]
	}

	return &CircularDependencyError{
		TaskID:     involved,
		Cycle:      cycle,
		Unresolved: unresolved,
	}
}

// findCycle walks unprocessed dependencies from start until a task repeats.
// Every unprocessed task has at least one unprocessed dependency, so the
// walk always closes a loop.
func findCycle(start string, deps map[string][]string, processed map[string]bool) []string {
	pos := make(map[string]int)
	var path []string

	cur := start
	for {
		if i, seen := pos[cur]; seen {
			cycle := append([]string(nil), path[i:]...)
			// Report in dependency direction: a task then what it waits on
			return append(cycle, cur)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, depID := range deps[cur] {
			if !processed[depID] {
				next = depID
				break
			}
		}
		if next == "" {
			return nil
		}
		cur = next
	}
}
