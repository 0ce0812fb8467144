package tmall

import "tmall-review-crawler/internal/store"

// BuildTable lays rows out on the union of their columns, in the order the
// columns were first seen. Cells a row does not have are left blank.
func BuildTable(rows []Row) store.Table {
	var cols []string
	seen := map[string]bool{}
	for _, r := range rows {
		for _, c := range r.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}

	t := store.Table{Columns: cols, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		cells := make([]any, len(cols))
		for i, c := range cols {
			v, ok := r.Values[c]
			if !ok || v == nil {
				v = ""
			}
			cells[i] = v
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}
