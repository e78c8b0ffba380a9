// Package output provides formatters for displaying reconciliation
// plans and execution results in non-interactive mode (plain, json).
//
// The package uses a registry pattern so formats can be selected at
// runtime by name.
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

// Report is the complete output data for one run. Result is nil when
// only a plan was computed (plan-only / dry-run invocations).
type Report struct {
	// Plan is the computed reconciliation plan.
	Plan *types.Plan `json:"plan"`

	// Result is the execution outcome, nil for plan-only runs.
	Result *types.ExecutionResult `json:"result,omitempty"`

	// Commit is the snapshot commit hash, when known.
	Commit string `json:"commit,omitempty"`

	// Branch is the upstream branch the snapshot tracks.
	Branch string `json:"branch,omitempty"`
}

// Formatter is the interface all output formatters implement.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory, replacing any existing factory
// with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted names of all registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
