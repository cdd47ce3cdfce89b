package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidBatchSize = errors.New("batch size must be >= 1")
	ErrInvalidDelay     = errors.New("inter-batch delay must be >= 0")
	ErrNilWorker        = errors.New("worker function cannot be nil")
	ErrTimeout          = errors.New("operation timed out")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrBodyTooLarge     = errors.New("response body exceeds size limit")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrMissingField     = errors.New("required field not found")
	ErrMissingColumn    = errors.New("column not found in input")
)

// ConfigError is a structural error: the batch run was configured incorrectly
// and no work was attempted.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ItemError records the failure of a single work item. It is logged and
// absorbed by the batch runner, never returned to its caller.
type ItemError struct {
	Item  string
	Batch int
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %q (batch %d, index %d): %v", e.Item, e.Batch, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// PanicError wraps a recovered worker panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// FetchError wraps errors that occur during navigation or fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur during field extraction.
type ParseError struct {
	URL      string
	Field    string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error for %s (field=%s selector=%q): %v", e.URL, e.Field, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CleanupError wraps a failure while releasing a per-item resource such as
// a browser page or process.
type CleanupError struct {
	Resource string
	Item     string
	Err      error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of %s for %q failed: %v", e.Resource, e.Item, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during input reading or export.
type StorageError struct {
	Backend string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage error (%s, %s): %v", e.Backend, e.Path, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record processing pipeline.
type PipelineError struct {
	Stage  string
	Record *Record
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
