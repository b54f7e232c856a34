package scraper

import (
	"fmt"
	"sort"
	"sync"

	"jobtracker/ingestion-service/internal/model"
)

// Source ids of the built-in extractors.
const (
	SourceUruguayXXI      = "uruguay-xxi"
	SourceUruguayConcursa = "uruguay-concursa"
	SourceBuscoJobs       = "buscojobs"
	SourceCompuTrabajo    = "computrabajo"
	SourceLinkedIn        = "linkedin"
	SourceAdzuna          = "adzuna"
)

// Registry maps source ids to extractor factories. It is safe for
// concurrent use; registrations take effect for the next Resolve.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a Registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SourceUruguayXXI, NewUruguayXXI)
	r.Register(SourceUruguayConcursa, NewUruguayConcursa)
	r.Register(SourceBuscoJobs, NewBuscoJobs)
	r.Register(SourceCompuTrabajo, NewCompuTrabajo)
	r.Register(SourceLinkedIn, NewLinkedIn)
	r.Register(SourceAdzuna, NewAdzuna)
	return r
}

// Register binds id to f, replacing any previous binding.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Unregister removes the binding for id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, id)
}

// Resolve builds the extractor for src.
func (r *Registry) Resolve(src model.Source, deps Deps) (Extractor, error) {
	r.mu.RLock()
	f, ok := r.factories[src.ID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnconfiguredSource, src.ID)
	}
	return f(src, deps), nil
}

// IsSupported reports whether an extractor is registered for id.
func (r *Registry) IsSupported(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered source ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
