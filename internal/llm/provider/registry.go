package provider

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

// Constructor builds an adapter from its descriptor.
type Constructor func(desc Descriptor, opts ...Option) (Adapter, error)

// Factory maps provider names to constructors.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[name] = ctor
}

// Names lists the registered provider names, sorted.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ctors))
	for n := range f.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Create builds the adapter for desc.Name.
func (f *Factory) Create(desc Descriptor, opts ...Option) (Adapter, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[desc.Name]
	f.mu.RUnlock()
	if !ok {
		return nil, common.ConfigError("unknown provider %q", desc.Name)
	}
	return ctor(desc, opts...)
}

// Registry holds the adapters of the enabled providers.
type Registry struct {
	adapters map[string]Adapter
	names    []string
}

// NewRegistry wraps already-built adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.add(a)
	}
	return r
}

func (r *Registry) add(a Adapter) {
	if _, dup := r.adapters[a.Name()]; !dup {
		r.names = append(r.names, a.Name())
		sort.Strings(r.names)
	}
	r.adapters[a.Name()] = a
}

// Build creates adapters for every enabled descriptor. Disabled descriptors
// and those whose construction fails are skipped; failures are logged.
func Build(f *Factory, descs []Descriptor, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()
	for _, d := range descs {
		if !d.Enabled {
			logger.Debug("llm.provider.skipped", "provider", d.Name, "reason", "disabled")
			continue
		}
		a, err := f.Create(d, opts...)
		if err != nil {
			logger.Error("llm.provider.init_failed", "provider", d.Name, "error", err)
			continue
		}
		r.add(a)
		logger.Info("llm.provider.initialized", "provider", d.Name)
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names lists registered adapters, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns the adapters in name order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.adapters[n])
	}
	return out
}

// Len reports how many adapters are registered.
func (r *Registry) Len() int { return len(r.adapters) }
