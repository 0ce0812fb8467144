package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tmall-review-crawler/internal/config"

	_ "modernc.org/sqlite"
)

var (
	sqliteOnce sync.Once
	sqliteInst *sql.DB
	sqliteErr  error
)

func sqlitePath() string {
	p := strings.TrimSpace(config.AppConfig.SQLitePath)
	if p == "" {
		p = filepath.Join("data", "tmall_reviews.db")
	}
	return p
}

func sqliteDB() (*sql.DB, error) {
	sqliteOnce.Do(func() {
		p := sqlitePath()
		if dir := filepath.Dir(p); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0755)
		}
		db, err := sql.Open("sqlite", p)
		if err != nil {
			sqliteErr = err
			return
		}
		// One writer; WAL keeps readers (the API data endpoints) unblocked.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		err = execAll(db, []string{
			`PRAGMA busy_timeout = 5000;`,
			`PRAGMA journal_mode = WAL;`,
			`CREATE TABLE IF NOT EXISTS items (
				platform TEXT NOT NULL,
				item_id TEXT NOT NULL,
				data_json TEXT NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (platform, item_id)
			);`,
			`CREATE TABLE IF NOT EXISTS reviews (
				platform TEXT NOT NULL,
				review_id TEXT NOT NULL,
				item_id TEXT NOT NULL,
				data_json TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				PRIMARY KEY (platform, review_id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_item ON reviews(platform, item_id);`,
		})
		if err != nil {
			_ = db.Close()
			sqliteErr = err
			return
		}
		sqliteInst = db
	})
	return sqliteInst, sqliteErr
}
