package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/docembed/internal/config"
	"github.com/markdave123-py/docembed/internal/core"
	"github.com/markdave123-py/docembed/internal/models"
)

type DatabaseClient struct {
	db      *sql.DB
	dialect dialect
	prune   bool
	logger  *slog.Logger
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	d, dsn, err := resolveDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxConns := cfg.DBMaxConns
	if maxConns < 1 || d.name == sqliteDialect.name {
		// a single SQLite connection avoids SQLITE_BUSY between writers
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{
		db:      db,
		dialect: d,
		prune:   cfg.PruneStaleChunks,
		logger:  slog.Default().With("component", "database", "dialect", d.name),
	}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// UpsertDocuments inserts or overwrites the chunks of one file in a single transaction.
// Either every record commits or none does. With pruning enabled, rows of the same
// parent whose id is not part of records are deleted in the same transaction.
func (c *DatabaseClient) UpsertDocuments(ctx context.Context, parentID string, records []models.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].ParentID != parentID {
			return fmt.Errorf("record %s has parent %q, want %q", records[i].ID, records[i].ParentID, parentID)
		}
		if len(records[i].Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", records[i].ID)
		}
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if c.prune {
		if err := c.pruneStale(ctx, tx, parentID, records); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	q := fmt.Sprintf(`
		INSERT INTO docs (id, source, type, chunk, embedding, parent_id)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			type = EXCLUDED.type,
			chunk = EXCLUDED.chunk,
			embedding = EXCLUDED.embedding,
			parent_id = EXCLUDED.parent_id
	`, c.dialect.placeholders(1, 6))

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		vec := pgvector.NewVector(rec.Embedding)

		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Source, rec.Type, rec.Chunk, vec, rec.ParentID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	c.logger.Debug("upserted chunks", "parent_id", parentID, "rows", len(records))
	return nil
}

// pruneStale deletes rows left over from a previous, longer version of the file.
func (c *DatabaseClient) pruneStale(ctx context.Context, tx *sql.Tx, parentID string, keep []models.DocumentRecord) error {
	args := make([]any, 0, len(keep)+1)
	args = append(args, parentID)
	for i := range keep {
		args = append(args, keep[i].ID)
	}

	q := fmt.Sprintf(`DELETE FROM docs WHERE parent_id = %s AND id NOT IN (%s)`,
		c.dialect.placeholder(1), c.dialect.placeholders(2, len(keep)))

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("prune stale chunks: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.logger.Info("pruned stale chunks", "parent_id", parentID, "rows", n)
	}
	return nil
}

// GetDocumentsByParent returns every stored chunk of one file ordered by chunk index.
func (c *DatabaseClient) GetDocumentsByParent(ctx context.Context, parentID string) ([]models.DocumentRecord, error) {
	q := fmt.Sprintf(`
		SELECT id, source, type, chunk, embedding, parent_id
		FROM docs
		WHERE parent_id = %s
	`, c.dialect.placeholder(1))

	rows, err := c.db.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentRecord
	for rows.Next() {
		var (
			rec models.DocumentRecord
			emb pgvector.Vector
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Type, &rec.Chunk, &emb, &rec.ParentID); err != nil {
			return nil, err
		}
		rec.Embedding = emb.Slice()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return chunkIndex(out[i].ID) < chunkIndex(out[j].ID)
	})
	return out, nil
}

func (c *DatabaseClient) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// chunkIndex parses the trailing "-{index}" of a document id; malformed ids sort last.
func chunkIndex(id string) int {
	pos := strings.LastIndexByte(id, '-')
	if pos < 0 {
		return math.MaxInt
	}
	n, err := strconv.Atoi(id[pos+1:])
	if err != nil {
		return math.MaxInt
	}
	return n
}
