// Package docstore is a thin document-CRUD layer over a managed document
// database. Every record is a flat map of fields addressed by a collection
// name and an opaque string id. Updates accept per-field operations so that
// counters can be incremented atomically server-side instead of read back
// and overwritten.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get, Update and Delete when the id does not
// exist in the collection.
var ErrNotFound = errors.New("docstore: document not found")

// Document is one stored record.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store is the contract every backend implements.
type Store interface {
	// List returns all documents in the collection ordered by the named
	// field. Missing order fields sort last.
	List(ctx context.Context, collection, orderBy string, desc bool) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create assigns and returns the document id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, ops map[string]FieldOp) error
	Delete(ctx context.Context, collection, id string) error
}

type opKind int

const (
	opSet opKind = iota
	opIncrement
	opArrayUnion
)

// FieldOp describes how a single field changes inside an Update.
type FieldOp struct {
	kind  opKind
	value any
	delta int64
	elems []any
}

// Set replaces the field with v.
func Set(v any) FieldOp { return FieldOp{kind: opSet, value: v} }

// Increment adds n to a numeric field, atomically on backends that support
// it. A missing field counts as zero.
func Increment(n int64) FieldOp { return FieldOp{kind: opIncrement, delta: n} }

// ArrayUnion appends elems to an array field. The field is created when
// absent.
func ArrayUnion(elems ...any) FieldOp { return FieldOp{kind: opArrayUnion, elems: elems} }

// applyOps mutates fields in place according to ops. Shared by the memory
// and sqlite backends, which both hold the whole document while updating.
func applyOps(fields map[string]any, ops map[string]FieldOp) {
	for name, op := range ops {
		switch op.kind {
		case opSet:
			fields[name] = op.value
		case opIncrement:
			fields[name] = toInt64(fields[name]) + op.delta
		case opArrayUnion:
			arr, _ := fields[name].([]any)
			fields[name] = append(arr, op.elems...)
		}
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
