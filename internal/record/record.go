// Package record implements the dual-store record repository: authoritative
// CRUD against the Redis primary store with best-effort mirroring into the
// semantic search index.
package record

import (
	"encoding/json"
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrNotFound indicates no record exists for the given kind and id.
	ErrNotFound = errors.New("record not found")
)

// Record is one stored entity: a generated id, a field map, and system
// timestamps. The primary store copy is authoritative; the search index
// copy is a denormalized, possibly stale projection.
type Record struct {
	ID        string
	Kind      string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Field returns a field value, or nil when absent.
func (r *Record) Field(name string) any {
	if r == nil {
		return nil
	}
	return r.Fields[name]
}

// StringField returns a field as a string, or "" when absent or not a
// string.
func (r *Record) StringField(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// System field names stored alongside user data in the primary hash.
const (
	fieldID        = "id"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// encodeFields flattens a field map into the string-valued hash the
// primary store holds: strings pass through, everything else is JSON.
func encodeFields(fields map[string]any) map[string]string {
	encoded := make(map[string]string, len(fields))
	for name, value := range fields {
		if s, ok := value.(string); ok {
			encoded[name] = s
			continue
		}
		payload, err := json.Marshal(value)
		if err != nil {
			// Unencodable values are dropped rather than failing the
			// whole write; they cannot round-trip anyway.
			continue
		}
		encoded[name] = string(payload)
	}
	return encoded
}

// decodeFields reverses encodeFields: values that parse as JSON become
// structured values, the rest stay strings.
func decodeFields(hash map[string]string) map[string]any {
	fields := make(map[string]any, len(hash))
	for name, value := range hash {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			fields[name] = parsed
			continue
		}
		fields[name] = value
	}
	return fields
}

// recordFromHash builds a Record from a primary-store hash.
func recordFromHash(kind string, hash map[string]string) *Record {
	rec := &Record{
		Kind:   kind,
		ID:     hash[fieldID],
		Fields: make(map[string]any, len(hash)),
	}
	for name, value := range hash {
		switch name {
		case fieldID:
			continue
		case fieldCreatedAt:
			rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, value)
		case fieldUpdatedAt:
			rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, value)
		default:
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err == nil {
				rec.Fields[name] = parsed
			} else {
				rec.Fields[name] = value
			}
		}
	}
	return rec
}

// documentText builds the searchable document for the secondary index:
// the record's fields serialized as JSON, excluding system fields.
func documentText(fields map[string]any) string {
	payload, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(payload)
}
