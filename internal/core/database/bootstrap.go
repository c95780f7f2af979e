// internal/core/database/bootstrap.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"
)

//go:embed scripts/*.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the docs table (and the meta table tracking the
// schema version) when they are missing.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, d dialect) error {

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	if err := db.QueryRowContext(ctxBoot, d.metaExistsQuery).Scan(&exists); err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(ctxBoot, db, d)
	}

	var hasVersion bool
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM ingest_meta WHERE version = %s)`, d.placeholder(1))
	if err := db.QueryRowContext(ctxBoot, q, schemaVersion).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, db, d)
	}

	slog.Debug("schema already bootstrapped", "dialect", d.name, "version", schemaVersion)
	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, d dialect) error {
	sqlBytes, err := bootstrapFS.ReadFile(d.script)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.script, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	slog.Info("schema bootstrapped", "dialect", d.name, "version", schemaVersion)
	return nil
}
