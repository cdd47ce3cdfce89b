package types

import (
	"errors"
	"testing"
)

func TestRecordKeepsInsertionOrder(t *testing.T) {
	r := NewRecord("9780000000001")
	r.Set("isbn", "9780000000001")
	r.Set("url", "https://example.com/book")
	r.Set("title", "A Book")
	r.Set("isbn", "9780000000002") // overwrite keeps position

	keys := r.Keys()
	want := []string{"isbn", "url", "title"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
	if r.GetString("isbn") != "9780000000002" {
		t.Errorf("expected overwritten value, got %q", r.GetString("isbn"))
	}
}

func TestRecordZeroValue(t *testing.T) {
	var r Record
	if r.Has("isbn") || r.Len() != 0 {
		t.Fatal("zero record should be empty")
	}
	r.Set("isbn", "1")
	r.Set("url", "https://example.com/b")

	got, err := r.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	if string(got) != `{"isbn":"1","url":"https://example.com/b"}` {
		t.Errorf("unexpected json: %s", got)
	}
	if flat := r.ToFlatMap(); len(flat) != len(r.Keys()) {
		t.Errorf("flat map and keys disagree: %v vs %v", flat, r.Keys())
	}
}

func TestRecordValueSentinel(t *testing.T) {
	r := NewRecord("x")
	r.Set("price", "$9.99")

	if got := r.Value("price"); got != "$9.99" {
		t.Errorf("expected $9.99, got %q", got)
	}
	if got := r.Value("rating"); got != NotAvailable {
		t.Errorf("expected %q for missing field, got %q", NotAvailable, got)
	}
}

func TestRecordDelete(t *testing.T) {
	r := NewRecord("x")
	r.Set("a", "1")
	r.Set("b", "2")
	r.Set("c", "3")
	r.Delete("b")
	r.Delete("missing")

	if r.Has("b") {
		t.Error("b should be deleted")
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("unexpected keys after delete: %v", keys)
	}
}

func TestRecordToJSONOrdered(t *testing.T) {
	r := NewRecord("x")
	r.Set("z", "last-alpha")
	r.Set("a", `quote "q"`)

	b, err := r.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	want := `{"z":"last-alpha","a":"quote \"q\""}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestRecordClone(t *testing.T) {
	r := NewRecord("x")
	r.Set("a", "1")
	c := r.Clone()
	c.Set("a", "2")
	c.Set("b", "3")

	if r.GetString("a") != "1" || r.Has("b") {
		t.Error("clone mutation leaked into original")
	}
	if c.Source != "x" {
		t.Errorf("expected source to be copied, got %q", c.Source)
	}
}

func TestItemErrorUnwrap(t *testing.T) {
	inner := &FetchError{URL: "https://example.com", Err: ErrTimeout}
	err := error(&ItemError{Item: "i1", Batch: 0, Index: 1, Err: inner})

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected ItemError to unwrap to ErrTimeout")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to find FetchError")
	}
	if fe.URL != "https://example.com" {
		t.Errorf("unexpected URL %q", fe.URL)
	}
}

func TestConfigErrorUnwrap(t *testing.T) {
	err := error(&ConfigError{Field: "batch_size", Value: 0, Err: ErrInvalidBatchSize})
	if !errors.Is(err, ErrInvalidBatchSize) {
		t.Error("expected ConfigError to unwrap to ErrInvalidBatchSize")
	}
}

func TestPageResolveURL(t *testing.T) {
	p := NewBrowserPage("https://www.kobo.com/us/en/ebook/x", "", nil, 0)
	got := p.ResolveURL("/images/cover.jpg")
	if got != "https://www.kobo.com/images/cover.jpg" {
		t.Errorf("unexpected resolved URL %q", got)
	}
	got = p.ResolveURL("//cdn.kobo.com/c.jpg")
	if got != "https://cdn.kobo.com/c.jpg" {
		t.Errorf("unexpected protocol-relative resolution %q", got)
	}
}
