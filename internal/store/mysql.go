package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tmall-review-crawler/internal/config"

	_ "github.com/go-sql-driver/mysql"
)

var (
	mysqlOnce sync.Once
	mysqlInst *sql.DB
	mysqlErr  error
)

func mysqlDB() (*sql.DB, error) {
	mysqlOnce.Do(func() {
		dsn := strings.TrimSpace(config.AppConfig.MySQLDSN)
		if dsn == "" {
			mysqlErr = errors.New("MYSQL_DSN is empty")
			return
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			mysqlErr = err
			return
		}
		setDBPoolDefaults(db, 8)
		db.SetConnMaxIdleTime(2 * time.Minute)

		err = execAll(db, []string{
			`CREATE TABLE IF NOT EXISTS items (
				platform VARCHAR(32) NOT NULL,
				item_id VARCHAR(64) NOT NULL,
				data_json LONGTEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (platform, item_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
			`CREATE TABLE IF NOT EXISTS reviews (
				platform VARCHAR(32) NOT NULL,
				review_id VARCHAR(64) NOT NULL,
				item_id VARCHAR(64) NOT NULL,
				data_json LONGTEXT NOT NULL,
				created_at BIGINT NOT NULL,
				PRIMARY KEY (platform, review_id),
				KEY idx_reviews_item (platform, item_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		})
		if err != nil {
			_ = db.Close()
			mysqlErr = fmt.Errorf("mysql init schema: %w", err)
			return
		}
		mysqlInst = db
	})
	return mysqlInst, mysqlErr
}
