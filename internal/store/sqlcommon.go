package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tmall-review-crawler/internal/config"
)

type backend string

const (
	backendFile     backend = "file"
	backendSQLite   backend = "sqlite"
	backendMySQL    backend = "mysql"
	backendPostgres backend = "postgres"
	backendMongoDB  backend = "mongodb"
)

func backendKind() backend {
	switch strings.ToLower(strings.TrimSpace(config.AppConfig.StoreBackend)) {
	case "sqlite":
		return backendSQLite
	case "mysql":
		return backendMySQL
	case "postgres", "postgresql":
		return backendPostgres
	case "mongodb", "mongo":
		return backendMongoDB
	default:
		return backendFile
	}
}

func platformName() string {
	p := strings.ToLower(strings.TrimSpace(config.AppConfig.Platform))
	if p == "" {
		return "tmall"
	}
	return p
}

// dialect holds the statements that differ between the database/sql backends.
type dialect struct {
	upsertItem   string
	insertReview string
}

var dialects = map[backend]dialect{
	backendSQLite: {
		upsertItem: `INSERT INTO items(platform, item_id, data_json, updated_at)
			VALUES(?, ?, ?, ?)
			ON CONFLICT(platform, item_id)
			DO UPDATE SET data_json=excluded.data_json, updated_at=excluded.updated_at;`,
		insertReview: `INSERT OR IGNORE INTO reviews(platform, review_id, item_id, data_json, created_at) VALUES(?, ?, ?, ?, ?);`,
	},
	backendMySQL: {
		upsertItem: `INSERT INTO items(platform, item_id, data_json, updated_at)
			VALUES(?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE data_json=VALUES(data_json), updated_at=VALUES(updated_at);`,
		insertReview: `INSERT IGNORE INTO reviews(platform, review_id, item_id, data_json, created_at) VALUES(?, ?, ?, ?, ?);`,
	},
	backendPostgres: {
		upsertItem: `INSERT INTO items(platform, item_id, data_json, updated_at)
			VALUES($1, $2, $3, $4)
			ON CONFLICT (platform, item_id)
			DO UPDATE SET data_json=EXCLUDED.data_json, updated_at=EXCLUDED.updated_at;`,
		insertReview: `INSERT INTO reviews(platform, review_id, item_id, data_json, created_at) VALUES($1, $2, $3, $4, $5) ON CONFLICT (platform, review_id) DO NOTHING;`,
	},
}

func sqlDB(k backend) (*sql.DB, error) {
	switch k {
	case backendSQLite:
		return sqliteDB()
	case backendMySQL:
		return mysqlDB()
	case backendPostgres:
		return postgresDB()
	default:
		return nil, fmt.Errorf("not a sql backend: %s", k)
	}
}

func sqlUpsertItem(ctx context.Context, k backend, itemID string, data any) error {
	db, err := sqlDB(k)
	if err != nil {
		return err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, dialects[k].upsertItem, platformName(), itemID, string(b), time.Now().Unix())
	return err
}

// sqlInsertReviews returns how many rows were actually new.
func sqlInsertReviews[T any](ctx context.Context, k backend, itemID string, items []T, keyFn func(T) string) (int, error) {
	db, err := sqlDB(k)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	platform := platformName()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, dialects[k].insertReview)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	inserted := 0
	for _, item := range items {
		id := strings.TrimSpace(keyFn(item))
		if id == "" {
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("marshal review %s: %w", id, err)
		}
		res, err := stmt.ExecContext(ctx, platform, id, itemID, string(b), now)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func setDBPoolDefaults(db *sql.DB, maxOpen int) {
	if db == nil {
		return
	}
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)
}

func execAll(db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

var errEmptyItemID = errors.New("item_id is empty")
