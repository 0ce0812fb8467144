package tmall

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
)

const (
	labelYes = "是"
	labelNo  = "否"
)

// Row is one normalized record. Columns keeps the order cells were produced
// in; tag expansion makes it differ between rows.
type Row struct {
	Columns []string
	Values  map[string]any
}

func (r *Row) set(col string, v any) {
	if r.Values == nil {
		r.Values = map[string]any{}
	}
	if _, ok := r.Values[col]; !ok {
		r.Columns = append(r.Columns, col)
	}
	r.Values[col] = v
}

type NormalizeOptions struct {
	// Exclude drops a record before it is flattened.
	Exclude func(Record) bool
}

type NormalizeResult struct {
	Rows     []Row
	Filtered int
	Skipped  int
	Errors   []error
}

// EmptyReviewFilter excludes records whose feedback is exactly sentinel.
func EmptyReviewFilter(sentinel string) func(Record) bool {
	return func(rec Record) bool {
		v, ok := Lookup(rec, pathFeedback)
		if !ok {
			return false
		}
		s, isStr := v.(string)
		return isStr && s == sentinel
	}
}

// Normalize flattens records with sel. A record that cannot be flattened is
// logged and skipped.
func Normalize(records []Record, sel FieldSelection, opts NormalizeOptions) NormalizeResult {
	out := NormalizeResult{Rows: make([]Row, 0, len(records))}
	for i, rec := range records {
		if opts.Exclude != nil && opts.Exclude(rec) {
			out.Filtered++
			continue
		}
		row, err := NormalizeRecord(rec, sel)
		if err != nil {
			logger.Warn("record skipped", "index", i, "id", recordID(rec), "err", err)
			out.Skipped++
			out.Errors = append(out.Errors, err)
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func NormalizeRecord(rec Record, sel FieldSelection) (row Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = crawler.NewError(crawler.ErrorKindNormalize, platformName, fmt.Sprintf("record %s: %v", recordID(rec), r), nil)
		}
	}()

	row = Row{Values: make(map[string]any, len(sel))}
	for _, f := range sel {
		v, ok := Lookup(rec, f.Path)
		switch {
		case f.Path == pathUserTags:
			if err := expandTags(&row, f.Label, v, ok); err != nil {
				return Row{}, crawler.NewError(crawler.ErrorKindNormalize, platformName, fmt.Sprintf("record %s: %v", recordID(rec), err), err)
			}
		case f.Path == pathRateType:
			row.set(f.Label, rateTypeLabel(v))
		case flagFields[f.Path]:
			row.set(f.Label, flagLabel(v))
		case f.Path == pathSkuMap:
			row.set(f.Label, skuMapText(v))
		case !ok:
			row.set(f.Label, "")
		default:
			row.set(f.Label, cellValue(v))
		}
	}
	return row, nil
}

// Lookup walks a dotted path through nested objects. It reports false when a
// segment is missing or a parent is not an object, and treats null as missing.
func Lookup(rec Record, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

func rateTypeLabel(v any) string {
	switch scalarText(v) {
	case "1":
		return "好评"
	case "0":
		return "中评"
	default:
		return "差评"
	}
}

func flagLabel(v any) string {
	switch scalarText(v) {
	case "1", "true":
		return labelYes
	default:
		return labelNo
	}
}

func skuMapText(v any) string {
	m, ok := asObject(v)
	if !ok || len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + scalarText(m[k])
	}
	return strings.Join(parts, ", ")
}

// TagColumns names the three columns produced for the i-th tag (1-based).
func TagColumns(base string, i int) (code, desc, icon string) {
	prefix := base + "_" + strconv.Itoa(i) + "_"
	return prefix + "代码", prefix + "描述", prefix + "图标"
}

func expandTags(row *Row, base string, v any, present bool) error {
	if !present {
		return nil
	}
	tags, ok := v.([]any)
	if !ok {
		return fmt.Errorf("userTagList is %T, want list", v)
	}
	for i, t := range tags {
		tag, ok := asObject(t)
		if !ok {
			return fmt.Errorf("userTagList[%d] is %T, want object", i, t)
		}
		code, desc, icon := TagColumns(base, i+1)
		row.set(code, tagText(tag, "tagCode"))
		row.set(desc, tagText(tag, "tagDesc"))
		row.set(icon, tagText(tag, "tagIconPic"))
	}
	return nil
}

func tagText(tag map[string]any, key string) string {
	v, ok := tag[key]
	if !ok || v == nil {
		return ""
	}
	return scalarText(v)
}

// cellValue keeps numbers numeric and renders nested values as compact json.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string, bool:
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	case int64:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(cellValue(x))
	}
}

func recordID(rec Record) string {
	v, ok := Lookup(rec, "id")
	if !ok {
		return ""
	}
	return scalarText(v)
}
