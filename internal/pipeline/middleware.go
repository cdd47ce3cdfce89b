package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/IshaanNene/bookgoat/internal/types"
)

// NormalizeMiddleware puts every field in Unicode NFC form and trims
// surrounding whitespace. Inner whitespace, including line breaks between
// paragraphs, is kept as extracted.
type NormalizeMiddleware struct{}

func (m *NormalizeMiddleware) Name() string { return "normalize" }

func (m *NormalizeMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, key := range rec.Keys() {
		s := rec.GetString(key)
		if s == "" {
			continue
		}
		rec.Set(key, strings.TrimSpace(norm.NFC.String(s)))
	}
	return rec, nil
}

// FieldOrderMiddleware moves the listed fields to the front of the record,
// in the given order. Fields not present are skipped.
type FieldOrderMiddleware struct {
	Fields []string
}

func (m *FieldOrderMiddleware) Name() string { return "field_order" }

func (m *FieldOrderMiddleware) Process(rec *types.Record) (*types.Record, error) {
	out := types.NewRecord(rec.Source)
	for _, key := range m.Fields {
		if val, ok := rec.Get(key); ok {
			out.Set(key, val)
		}
	}
	for _, key := range rec.Keys() {
		if !out.Has(key) {
			out.Set(key, rec.GetString(key))
		}
	}
	return out, nil
}
