package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tmall-review-crawler/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	pgOnce sync.Once
	pgInst *sql.DB
	pgErr  error
)

func postgresDB() (*sql.DB, error) {
	pgOnce.Do(func() {
		dsn := strings.TrimSpace(config.AppConfig.PostgresDSN)
		if dsn == "" {
			pgErr = errors.New("POSTGRES_DSN is empty")
			return
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			pgErr = err
			return
		}
		setDBPoolDefaults(db, 8)
		db.SetConnMaxIdleTime(2 * time.Minute)

		err = execAll(db, []string{
			`CREATE TABLE IF NOT EXISTS items (
				platform TEXT NOT NULL,
				item_id TEXT NOT NULL,
				data_json TEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (platform, item_id)
			);`,
			`CREATE TABLE IF NOT EXISTS reviews (
				platform TEXT NOT NULL,
				review_id TEXT NOT NULL,
				item_id TEXT NOT NULL,
				data_json TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				PRIMARY KEY (platform, review_id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_item ON reviews(platform, item_id);`,
		})
		if err != nil {
			_ = db.Close()
			pgErr = fmt.Errorf("postgres init schema: %w", err)
			return
		}
		pgInst = db
	})
	return pgInst, pgErr
}
