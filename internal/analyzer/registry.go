package analyzer

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultClassifier is the classifier name used when none is configured.
const DefaultClassifier = "keyword"

// Registry holds the available classifiers by name.
// It provides thread-safe access so a richer rule set can be registered
// at startup without touching the pipeline.
type Registry struct {
	mu          sync.RWMutex
	classifiers map[string]Classifier
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classifiers: make(map[string]Classifier),
	}
}

// NewDefaultRegistry creates a registry holding the built-in classifiers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Cannot fail: the built-in classifier is non-nil and named.
	_ = r.Register(NewKeywordClassifier())
	return r
}

// Register adds a classifier to the registry.
// A classifier with the same name is overwritten.
func (r *Registry) Register(c Classifier) error {
	if c == nil {
		return fmt.Errorf("cannot register nil classifier")
	}
	if c.Name() == "" {
		return fmt.Errorf("classifier name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.classifiers[c.Name()] = c
	return nil
}

// Get retrieves a classifier by name.
func (r *Registry) Get(name string) (Classifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classifiers[name]
	return c, ok
}

// Lookup retrieves a classifier by name or returns an error listing the
// registered names.
func (r *Registry) Lookup(name string) (Classifier, error) {
	if name == "" {
		name = DefaultClassifier
	}
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown classifier: %q (registered: %v)", name, r.List())
	}
	return c, nil
}

// List returns the registered classifier names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a classifier name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}
