package store

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadTable loads up to limit rows of an exported table (limit <= 0 reads
// all) and reports the total row count.
func ReadTable(path string, limit int) (Table, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, limit)
	case ".csv":
		return readCSV(path, limit)
	case ".json":
		return readJSONTable(path, limit)
	default:
		return Table{}, 0, fmt.Errorf("unsupported table format: %s", filepath.Ext(path))
	}
}

// ReadJSONL loads up to limit raw records from a jsonl file and counts all of them.
func ReadJSONL(path string, limit int) ([]map[string]any, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []map[string]any
	total := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		total++
		if limit > 0 && len(out) >= limit {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", total, err)
		}
		out = append(out, m)
	}
	return out, total, scanner.Err()
}

func readXLSX(path string, limit int) (Table, int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, 0, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, 0, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil || len(rows) == 0 {
		return Table{}, 0, err
	}
	t := Table{Columns: rows[0]}
	for _, r := range rows[1:] {
		if limit > 0 && len(t.Rows) >= limit {
			break
		}
		t.Rows = append(t.Rows, padCells(r, len(t.Columns)))
	}
	return t, len(rows) - 1, nil
}

func readCSV(path string, limit int) (Table, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, 0, nil
		}
		return Table{}, 0, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	t := Table{Columns: header}
	total := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, 0, err
		}
		total++
		if limit <= 0 || len(t.Rows) < limit {
			t.Rows = append(t.Rows, padCells(rec, len(header)))
		}
	}
	return t, total, nil
}

func readJSONTable(path string, limit int) (Table, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, 0, err
	}
	var records []map[string]any
	if err := json.Unmarshal(b, &records); err != nil {
		return Table{}, 0, err
	}
	var t Table
	seen := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
	}
	for _, rec := range records {
		if limit > 0 && len(t.Rows) >= limit {
			break
		}
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			if v, ok := rec[c]; ok && v != nil {
				row[i] = v
			} else {
				row[i] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, len(records), nil
}

func padCells(rec []string, n int) []any {
	out := make([]any, n)
	for i := range out {
		if i < len(rec) {
			out[i] = rec[i]
		} else {
			out[i] = ""
		}
	}
	return out
}
