package scheduler

import "fmt"

// Wave is a set of tasks with no dependency edges between them.
// Members keep input order.
type Wave []*Task

// IDs returns the task IDs of the wave in order.
func (w Wave) IDs() []string {
	ids := make([]string, 0, len(w))
	for _, task := range w {
		ids = append(ids, task.ID)
	}
	return ids
}

// Schedule partitions the graph into waves by topological leveling.
// Every dependency of a task in wave n lies in a wave before n.
// The graph is expected to be validated; a graph that stalls returns ErrInvalidGraph.
func Schedule(g *Graph) ([]Wave, error) {
	tasks := g.Tasks()

	remaining := make(map[string]int, len(tasks))
	for _, task := range tasks {
		remaining[task.ID] = len(task.DependsOn)
	}

	assigned := make(map[string]bool, len(tasks))
	var waves []Wave

	for len(assigned) < len(tasks) {
		var wave Wave
		for _, task := range tasks {
			if !assigned[task.ID] && remaining[task.ID] == 0 {
				wave = append(wave, task)
			}
		}

		if len(wave) == 0 {
			return nil, fmt.Errorf("%w: %d tasks cannot be scheduled", ErrInvalidGraph, len(tasks)-len(assigned))
		}

		// Complete the wave: release everything waiting on its members
		for _, task := range wave {
			assigned[task.ID] = true
			for _, dependent := range g.Dependents(task.ID) {
				remaining[dependent]--
			}
		}

		waves = append(waves, wave)
	}

	return waves, nil
}

// Parallelism returns the size of the largest wave.
func Parallelism(waves []Wave) int {
	largest := 0
	for _, wave := range waves {
		largest = max(largest, len(wave))
	}
	return largest
}
