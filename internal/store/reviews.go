package store

import (
	"context"
	"path/filepath"
	"strings"
)

// SaveReviews persists raw review records for one item on the configured
// backend, skipping records already stored under the same key. It reports how
// many records were new.
func SaveReviews[T any](ctx context.Context, itemID string, records []T, keyFn func(T) string) (int, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return 0, errEmptyItemID
	}
	if len(records) == 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	switch k := backendKind(); k {
	case backendSQLite, backendMySQL, backendPostgres:
		return sqlInsertReviews(ctx, k, itemID, records, keyFn)
	case backendMongoDB:
		return mongoInsertReviews(ctx, itemID, records, keyFn)
	default:
		return AppendUniqueJSONL(ItemDir(itemID), "reviews.jsonl", "reviews.idx", records, keyFn)
	}
}

// SaveItemSummary upserts the per-item run summary.
func SaveItemSummary(ctx context.Context, itemID string, summary any) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return errEmptyItemID
	}
	if ctx == nil {
		ctx = context.Background()
	}
	switch k := backendKind(); k {
	case backendSQLite, backendMySQL, backendPostgres:
		return sqlUpsertItem(ctx, k, itemID, summary)
	case backendMongoDB:
		return mongoUpsertItem(ctx, itemID, summary)
	default:
		return writeJSONFile(filepath.Join(ItemDir(itemID), "item.json"), summary)
	}
}
