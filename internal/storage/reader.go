package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/IshaanNene/bookgoat/internal/types"
)

// ReadColumn returns every value of column from a dataset file, in row
// order. The format is chosen from the file extension; files without a
// known extension are read as CSV. Rows lacking the column yield "".
func ReadColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Path: path, Err: err}
	}
	defer f.Close()

	var values []string
	switch formatOf(path) {
	case "json":
		values, err = readJSONColumn(f, column)
	case "jsonl":
		values, err = readJSONLColumn(f, column)
	default:
		values, err = readCSVColumn(f, column)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Path: path, Err: err}
	}
	return values, nil
}

func readCSVColumn(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	idx := -1
	for i, h := range header {
		// spreadsheet exports may carry a BOM on the first header
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", types.ErrMissingColumn, column)
	}

	var values []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}

func readJSONColumn(r io.Reader, column string) ([]string, error) {
	var rows []map[string]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, stringValue(row[column]))
	}
	return values, nil
}

func readJSONLColumn(r io.Reader, column string) ([]string, error) {
	var values []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("decode JSONL line: %w", err)
		}
		values = append(values, stringValue(row[column]))
	}
	return values, scanner.Err()
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
