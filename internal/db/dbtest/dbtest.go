// Package dbtest creates a throwaway, fully migrated Postgres database per
// test. It connects through the DATABASE_TEST_URL server URL (the database
// component of the URL is ignored); tests are skipped when no server is
// reachable.
package dbtest

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/corvidmail/mail-backend/internal/db/migrations"
)

const defaultServerURL = "postgres://postgres@localhost:5432/?sslmode=disable"

// DB is a disposable test database. Close drops it.
type DB struct {
	DSN string

	name      string
	serverDSN string
}

func Open(t *testing.T) *DB {
	t.Helper()

	serverDSN := os.Getenv("DATABASE_TEST_URL")
	if serverDSN == "" {
		serverDSN = defaultServerURL
	}

	admin, err := sqlx.Open("postgres", serverDSN)
	if err != nil {
		t.Fatalf("opening admin connection: %v", err)
	}
	defer admin.Close()
	if err := admin.Ping(); err != nil {
		t.Skipf("skipping, test database server not reachable at %s: %v", serverDSN, err)
	}

	name := "test_" + randomSuffix(t)
	if _, err := admin.Exec(fmt.Sprintf(`CREATE DATABASE %q`, name)); err != nil {
		t.Fatalf("creating test database %s: %v", name, err)
	}

	dbt := &DB{
		DSN:       replaceDatabase(t, serverDSN, name),
		name:      name,
		serverDSN: serverDSN,
	}
	dbt.migrateUp(t)
	return dbt
}

func (d *DB) Open() *sqlx.DB {
	return sqlx.MustOpen("postgres", d.DSN)
}

func (d *DB) Close() {
	admin, err := sqlx.Open("postgres", d.serverDSN)
	if err != nil {
		return
	}
	defer admin.Close()
	_, _ = admin.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS %q WITH (FORCE)`, d.name))
}

func (d *DB) migrateUp(t *testing.T) {
	t.Helper()

	conn, err := sql.Open("postgres", d.DSN)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	defer conn.Close()

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	if _, err := migrate.Exec(conn, "postgres", m, migrate.Up); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
}

func replaceDatabase(t *testing.T, serverDSN, name string) string {
	t.Helper()

	u, err := url.Parse(serverDSN)
	if err != nil {
		t.Fatalf("parsing server DSN: %v", err)
	}
	u.Path = "/" + name
	return u.String()
}

func randomSuffix(t *testing.T) string {
	t.Helper()

	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		t.Fatalf("generating database name: %v", err)
	}
	return strings.ToLower(hex.EncodeToString(buf[:]))
}
