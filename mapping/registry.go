package mapping

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrStatementNotFound = errors.New("mapping: mapped statement not found")

// Registry holds the mapped statements of a configuration by id.
type Registry struct {
	mu         sync.RWMutex
	statements map[string]*MappedStatement
}

func NewRegistry() *Registry {
	return &Registry{statements: make(map[string]*MappedStatement)}
}

func (r *Registry) Add(ms *MappedStatement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.statements[ms.ID()]; exists {
		return fmt.Errorf("mapping: mapped statement %s already registered", ms.ID())
	}
	r.statements[ms.ID()] = ms
	return nil
}

func (r *Registry) Get(id string) (*MappedStatement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.statements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStatementNotFound, id)
	}
	return ms, nil
}

// IDs returns every registered id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.statements))
	for id := range r.statements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
