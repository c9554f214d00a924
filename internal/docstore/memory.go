package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs the engine tests and is good
// enough to run the whole server without external services.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]any)}
}

func (m *Memory) List(ctx context.Context, collection, orderBy string, desc bool) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []Document
	for id, fields := range m.collections[collection] {
		docs = append(docs, Document{ID: id, Fields: cloneFields(fields)})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		less := lessField(docs[i].Fields[orderBy], docs[j].Fields[orderBy])
		if desc {
			return !less && !equalField(docs[i].Fields[orderBy], docs[j].Fields[orderBy])
		}
		return less
	})
	return docs, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]map[string]any)
	}
	id := uuid.New().String()
	m.collections[collection][id] = cloneFields(fields)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, ops map[string]FieldOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	applyOps(fields, ops)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// cloneFields keeps callers from aliasing stored state. Nested maps and
// slices are copied; everything else is a value.
func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case []any:
		arr := make([]any, len(t))
		for i, e := range t {
			arr[i] = cloneValue(e)
		}
		return arr
	}
	return v
}

func lessField(a, b any) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	default:
		return toInt64(a) < toInt64(b)
	}
}

func equalField(a, b any) bool {
	return !lessField(a, b) && !lessField(b, a)
}
