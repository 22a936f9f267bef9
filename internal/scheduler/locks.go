package scheduler

import (
	"slices"
	"sync"
)

// ResourceLocks serialises tasks that declare the same exclusive resource.
// Each resource key gets its own mutex, so tasks holding different
// resources still run concurrently within a wave.
type ResourceLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-resource mutexes
}

// NewResourceLocks creates an empty lock set.
func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *ResourceLocks) get(resource string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, exists := r.locks[resource]
	if !exists {
		l = &sync.Mutex{}
		r.locks[resource] = l
	}
	return l
}

// Acquire locks every resource and returns a function releasing them.
// Keys are acquired in sorted order so overlapping sets cannot deadlock;
// duplicates are ignored.
func (r *ResourceLocks) Acquire(resources []string) (release func()) {
	if len(resources) == 0 {
		return func() {}
	}

	sorted := slices.Clone(resources)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, resource := range sorted {
		l := r.get(resource)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		// Release in reverse order for symmetry with acquisition
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
