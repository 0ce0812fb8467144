package store

import (
	"context"
	"time"
)

// Init opens and pings the configured backend so a bad DSN fails at startup
// instead of after the first fetched item.
func Init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	switch k := backendKind(); k {
	case backendSQLite, backendMySQL, backendPostgres:
		db, err := sqlDB(k)
		if err != nil {
			return err
		}
		return db.PingContext(ctx)
	case backendMongoDB:
		_, err := mongoClient()
		return err
	default:
		return nil
	}
}

// Backend names the configured persistence backend.
func Backend() string {
	return string(backendKind())
}
