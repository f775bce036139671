package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and the "memory" driver.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string]Document
	writes int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]Document)}
}

// Seed stores docs as-is, generating ids where missing.
func (m *Memory) Seed(collection string, docs ...Document) {
	for _, d := range docs {
		_, _ = m.save(collection, d, false)
	}
}

// Writes returns how many Save and Delete calls succeeded.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return m.Query(ctx, collection)
}

func (m *Memory) GetByID(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return d.Clone(), nil
}

func (m *Memory) Save(_ context.Context, collection string, doc Document) (string, error) {
	return m.save(collection, doc, true)
}

func (m *Memory) save(collection string, doc Document, count bool) (string, error) {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string]Document)
		m.data[collection] = coll
	}
	merged := coll[id]
	if merged == nil {
		merged = make(Document, len(doc)+1)
	}
	for k, v := range doc {
		merged[k] = v
	}
	merged[FieldID] = id
	coll[id] = merged
	if count {
		m.writes++
	}
	return id, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	m.writes++
	return nil
}

// Query returns matching documents ordered by id.
func (m *Memory) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.data[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		d := coll[id]
		if matchAll(d, filters) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func matchAll(d Document, filters []Filter) bool {
	for _, f := range filters {
		v, present := d[f.Field]
		switch f.Op {
		case OpEqual:
			if !present || !equal(v, f.Value) {
				return false
			}
		case OpNotEqual:
			if present && equal(v, f.Value) {
				return false
			}
		case OpArrayContains:
			found := false
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if equal(item, f.Value) {
						found = true
						break
					}
				}
			}
			if list, ok := v.([]string); ok {
				for _, item := range list {
					if equal(item, f.Value) {
						found = true
						break
					}
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
