package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop the record.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// New creates a new Pipeline. metrics may be nil.
func New(logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		metrics: metrics,
		logger:  logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
	return p
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.metrics.RecordDropped(mw.Name())
			p.logger.Debug("record dropped", "middleware", mw.Name(), "source", rec.Source)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// ForResolve builds the pipeline applied to ISBN to URL records.
func ForResolve(logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return New(logger, metrics).
		Use(&TrimMiddleware{}).
		Use(&RequiredFieldsMiddleware{Fields: []string{"isbn", "url"}}).
		Use(NewDedupMiddleware("isbn")).
		Use(&FieldOrderMiddleware{Fields: []string{"isbn", "url"}})
}

// ForDetails builds the pipeline applied to detail records.
func ForDetails(logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return New(logger, metrics).
		Use(&NormalizeMiddleware{}).
		Use(NewDedupMiddleware("url"))
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops records whose required fields are absent,
// empty, or N/A.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, field := range m.Fields {
		val, ok := rec.Get(field)
		if !ok || val == "" || val == types.NotAvailable {
			return nil, nil
		}
	}
	return rec, nil
}

// DedupMiddleware drops records whose key field was already seen.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
	key  string
}

func NewDedupMiddleware(key string) *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
		key:  key,
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.Record) (*types.Record, error) {
	val := rec.GetString(m.key)
	if val == "" || val == types.NotAvailable {
		val = rec.Source
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[val]; exists {
		return nil, nil
	}
	m.seen[val] = struct{}{}
	return rec, nil
}

// TrimMiddleware trims whitespace from all fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, key := range rec.Keys() {
		rec.Set(key, strings.TrimSpace(rec.GetString(key)))
	}
	return rec, nil
}
