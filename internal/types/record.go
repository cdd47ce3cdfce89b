package types

import (
	"bytes"
	"encoding/json"
)

// NotAvailable is the placeholder for a field that could not be extracted.
const NotAvailable = "N/A"

// Record represents a single scraped data record: an ordered mapping of
// field name to string value. The schema is owned by whichever worker
// produced the record.
// Fields are only reachable through the methods, so the key order always
// matches the stored values. The zero value is an empty record.
type Record struct {
	// Source is the identifier or URL this record was produced from.
	Source string

	fields map[string]string
	keys   []string
}

// NewRecord creates a new empty Record for a source item.
func NewRecord(source string) *Record {
	return &Record{
		Source: source,
		fields: make(map[string]string),
	}
}

// Set sets a field value. New keys are appended to the field order;
// existing keys keep their position.
func (r *Record) Set(key, value string) {
	if r.fields == nil {
		r.fields = make(map[string]string)
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

// Get retrieves a field value.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// GetString retrieves a field value, or "" if absent.
func (r *Record) GetString(key string) string {
	return r.fields[key]
}

// Value returns the field value, or NotAvailable if the field is absent.
func (r *Record) Value(key string) string {
	v, ok := r.fields[key]
	if !ok {
		return NotAvailable
	}
	return v
}

// Has returns true if the field exists.
func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Delete removes a field.
func (r *Record) Delete(key string) {
	if _, ok := r.fields[key]; !ok {
		return
	}
	delete(r.fields, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns all field names in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// ToFlatMap returns a copy of the fields suitable for tabular export.
func (r *Record) ToFlatMap() map[string]string {
	flat := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		flat[k] = v
	}
	return flat
}

// ToJSON serializes the record as a JSON object, preserving field order.
func (r *Record) ToJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.ToJSON()
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{
		Source: r.Source,
		fields: make(map[string]string, len(r.fields)),
		keys:   append([]string(nil), r.keys...),
	}
	for k, v := range r.fields {
		clone.fields[k] = v
	}
	return clone
}
