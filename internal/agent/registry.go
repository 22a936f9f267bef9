package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader creates an executor on first use.
type Loader func(ctx context.Context) (Executor, error)

// Registry resolves executors by name. Executors registered with
// RegisterLoader are created lazily on first resolution and cached;
// concurrent first resolutions of the same name share one load.
type Registry struct {
	mu      sync.RWMutex
	loaded  map[string]Executor
	loaders map[string]Loader
	group   singleflight.Group
	logger  *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		loaded:  make(map[string]Executor),
		loaders: make(map[string]Loader),
		logger:  logger,
	}
}

// Register makes an executor available under name, replacing any previous one.
func (r *Registry) Register(name string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaded[name] = exec
	delete(r.loaders, name)
}

// RegisterLoader makes name resolvable through a lazy loader.
func (r *Registry) RegisterLoader(name string, load Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.loaded, name)
	r.loaders[name] = load
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loaded)+len(r.loaders))
	for name := range r.loaded {
		names = append(names, name)
	}
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver.
// A loader error is returned and not cached, so a later call retries the load.
func (r *Registry) Resolve(ctx context.Context, name string) (Executor, bool, error) {
	r.mu.RLock()
	exec, ok := r.loaded[name]
	load, lazy := r.loaders[name]
	r.mu.RUnlock()

	if ok {
		return exec, true, nil
	}
	if !lazy {
		return nil, false, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		// Another caller may have finished loading while we waited
		r.mu.RLock()
		exec, ok := r.loaded[name]
		r.mu.RUnlock()
		if ok {
			return exec, nil
		}

		r.logger.Debug("loading agent", zap.String("agent", name))
		exec, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if exec == nil {
			return nil, fmt.Errorf("loader for agent %q returned no executor", name)
		}

		r.mu.Lock()
		// Only cache if the loader was not replaced meanwhile
		if _, still := r.loaders[name]; still {
			r.loaded[name] = exec
			delete(r.loaders, name)
		}
		r.mu.Unlock()

		r.logger.Info("agent loaded", zap.String("agent", name))
		return exec, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading agent %q: %w", name, err)
	}

	return v.(Executor), true, nil
}
