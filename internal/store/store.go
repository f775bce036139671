// Package store is the document-store boundary: named collections of
// schemaless documents keyed by string ids.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned by GetByID when the document does not exist.
var ErrNotFound = errors.New("store: document not found")

// FieldID is the document field that mirrors the document id.
const FieldID = "id"

// Op is a query comparison operator.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpArrayContains Op = "array-contains"
)

// Filter restricts Query results to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Filter { return Filter{Field: field, Op: OpEqual, Value: v} }

// Contains matches documents whose array field holds v.
func Contains(field string, v any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: v}
}

// Store reads and writes documents.
type Store interface {
	GetAll(ctx context.Context, collection string) ([]Document, error)
	// GetByID returns ErrNotFound when id does not exist.
	GetByID(ctx context.Context, collection, id string) (Document, error)
	// Save merges doc into the stored document, creating it when absent.
	// A missing id is generated; the id is returned.
	Save(ctx context.Context, collection string, doc Document) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
}

// Document is one stored record. Accessors tolerate missing fields and
// mismatched types by returning zero values.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string { return d.String(FieldID) }

// String returns a string field.
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Bool returns a boolean field.
func (d Document) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Float returns a numeric field.
func (d Document) Float(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Strings returns a list of strings, skipping non-string items.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns a nested document.
func (d Document) Map(key string) Document {
	switch v := d[key].(type) {
	case map[string]any:
		return Document(v)
	case Document:
		return v
	}
	return nil
}

// Docs returns a list of nested documents.
func (d Document) Docs(key string) []Document {
	var out []Document
	switch raw := d[key].(type) {
	case []any:
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out = append(out, Document(m))
			}
		}
	case []map[string]any:
		for _, m := range raw {
			out = append(out, Document(m))
		}
	}
	return out
}

// Time returns a timestamp field stored either natively or as an RFC 3339
// string. ok is false for missing or unparsable values.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		return ParseTime(v)
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses the timestamp formats found in stored documents. Values
// without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
