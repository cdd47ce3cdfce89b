package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/bookgoat/internal/types"
)

// --- JSON Storage ---

// JSONStorage writes records as a JSON array to a file.
type JSONStorage struct {
	path    string
	records []*types.Record
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	s.logger.Debug("records buffered", "count", len(records), "total", len(s.records))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
	}
	defer f.Close()

	records := s.records
	if records == nil {
		records = []*types.Record{}
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return &types.StorageError{Backend: s.Name(), Path: s.path, Err: fmt.Errorf("encode JSON: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.records))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Path: outputPath, Err: err}
	}

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		buf:    bufio.NewWriter(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		line, err := rec.ToJSON()
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Path: s.path, Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		if _, err := s.buf.Write(line); err != nil {
			return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
		}
		if err := s.buf.WriteByte('\n'); err != nil {
			return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
	}
	return s.file.Close()
}

// --- CSV Storage ---

// CSVStorage writes records as CSV rows. Records are buffered until Close so
// the header can be the union of every field seen, in first-seen order.
// Fields missing from a record are written as types.NotAvailable.
type CSVStorage struct {
	path    string
	headers []string
	known   map[string]bool
	records []*types.Record
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	if err := ensureDir(outputPath); err != nil {
		return nil, err
	}
	return &CSVStorage{
		path:   outputPath,
		known:  make(map[string]bool),
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		for _, k := range rec.Keys() {
			if !s.known[k] {
				s.known[k] = true
				s.headers = append(s.headers, k)
			}
		}
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(s.headers) > 0 {
		if err := w.Write(s.headers); err != nil {
			return &types.StorageError{Backend: s.Name(), Path: s.path, Err: fmt.Errorf("write CSV header: %w", err)}
		}
	}

	row := make([]string, len(s.headers))
	for _, rec := range s.records {
		for i, h := range s.headers {
			row[i] = rec.Value(h)
		}
		if err := w.Write(row); err != nil {
			return &types.StorageError{Backend: s.Name(), Path: s.path, Err: fmt.Errorf("write CSV row: %w", err)}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: s.Name(), Path: s.path, Err: err}
	}

	s.logger.Info("CSV written", "path", s.path, "records", len(s.records), "columns", len(s.headers))
	return nil
}

// OutputPath builds the output file path for a dataset name and format.
func OutputPath(format, dir, name string) string {
	return filepath.Join(dir, name+"."+format)
}

// NewFileStorage creates the appropriate file-based storage by format.
func NewFileStorage(format, dir, name string, logger *slog.Logger) (Storage, error) {
	return newFileStorage(format, OutputPath(format, dir, name), logger)
}

// NewFileStorageAt creates a file storage for path, choosing the format
// from its extension.
func NewFileStorageAt(path string, logger *slog.Logger) (Storage, error) {
	return newFileStorage(formatOf(path), path, logger)
}

func newFileStorage(format, path string, logger *slog.Logger) (Storage, error) {
	switch format {
	case "json":
		return NewJSONStorage(path, logger)
	case "jsonl":
		return NewJSONLStorage(path, logger)
	case "csv":
		return NewCSVStorage(path, logger)
	default:
		return nil, &types.StorageError{Backend: "file", Path: path, Err: fmt.Errorf("unsupported format: %q", format)}
	}
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &types.StorageError{Backend: "file", Path: path, Err: fmt.Errorf("create output dir: %w", err)}
	}
	return nil
}
