package db

import (
	"context"
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/corvidmail/mail-backend/internal/db/migrations"
	"github.com/corvidmail/mail-backend/internal/utils"
)

// Migrate applies up to count migrations from the embedded set in the
// given direction, returning how many ran. count <= 0 means no limit.
func Migrate(ctx context.Context, databaseURL string, direction migrate.MigrationDirection, count int) (int, error) {
	pool, err := OpenDBConnectionPool(databaseURL)
	if err != nil {
		return 0, fmt.Errorf("connecting to the database: %w", err)
	}
	defer utils.DeferredClose(ctx, pool, "closing connection pool after migrations")

	sqlDB, err := pool.SqlDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting sql.DB from the connection pool: %w", err)
	}

	source := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	applied, err := migrate.ExecMax(sqlDB, "postgres", source, direction, count)
	if err != nil {
		return applied, fmt.Errorf("applying migrations: %w", err)
	}
	return applied, nil
}
