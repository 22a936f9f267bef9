package scheduler

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for its wave
	TaskRunning                     // Currently executing
	TaskSucceeded                   // Finished successfully
	TaskFailed                      // Finished with error
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskSpec is the caller-facing task descriptor.
type TaskSpec struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Agent        string         `json:"agent"`
	Input        map[string]any `json:"input,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Resources    []string       `json:"resources,omitempty"`
}

// Task represents a unit of work in the graph.
type Task struct {
	ID        string         // Unique identifier within a run
	Name      string         // Human-readable name
	Agent     string         // Name of the executor resolved at run time
	Input     map[string]any // Opaque payload handed to the executor
	DependsOn []string       // Task IDs this task depends on
	Resources []string       // Exclusive resources held while running
	Status    TaskStatus
}

// NewTask converts a descriptor into a pending task.
func NewTask(spec TaskSpec) *Task {
	return &Task{
		ID:        spec.ID,
		Name:      spec.Name,
		Agent:     spec.Agent,
		Input:     spec.Input,
		DependsOn: append([]string(nil), spec.Dependencies...),
		Resources: append([]string(nil), spec.Resources...),
		Status:    TaskPending,
	}
}

// NewTasks converts descriptors in order.
func NewTasks(specs []TaskSpec) []*Task {
	tasks := make([]*Task, 0, len(specs))
	for _, spec := range specs {
		tasks = append(tasks, NewTask(spec))
	}
	return tasks
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Resources != nil {
		cp.Resources = append([]string(nil), task.Resources...)
	}
	return &cp
}
