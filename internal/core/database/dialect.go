package db

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const sqliteScheme = "sqlite://"

// dialect captures the few places where Postgres and SQLite disagree.
type dialect struct {
	name            string // database/sql driver name
	script          string // bootstrap script inside bootstrapFS
	metaExistsQuery string
	numbered        bool // $1, $2 ... instead of ?
}

var (
	postgresDialect = dialect{
		name:   "pgx",
		script: "scripts/postgres.sql",
		metaExistsQuery: `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'ingest_meta'
		)`,
		numbered: true,
	}
	sqliteDialect = dialect{
		name:   "sqlite",
		script: "scripts/sqlite.sql",
		metaExistsQuery: `
		SELECT EXISTS (
		  SELECT 1 FROM sqlite_master
		  WHERE type = 'table' AND name = 'ingest_meta'
		)`,
	}
)

func (d dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// placeholders renders n consecutive placeholders starting at from.
func (d dialect) placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// resolveDSN picks the dialect for a DATABASE_URL and returns the DSN the driver expects.
func resolveDSN(databaseURL, sslCertPath string) (dialect, string, error) {
	if strings.HasPrefix(databaseURL, sqliteScheme) {
		path := strings.TrimPrefix(databaseURL, sqliteScheme)
		if path == "" {
			return dialect{}, "", fmt.Errorf("sqlite DATABASE_URL has no path")
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return sqliteDialect, path + sep + "_pragma=busy_timeout(5000)", nil
	}

	if sslCertPath == "" {
		return postgresDialect, databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return dialect{}, "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	// Append SSL params to the provided DATABASE_URL safely.
	u, err := url.Parse(databaseURL)
	if err != nil {
		return dialect{}, "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return postgresDialect, u.String(), nil
}
