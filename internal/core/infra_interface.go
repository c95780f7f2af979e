package core

import (
	"context"

	"github.com/markdave123-py/docembed/internal/models"
)

// DbClient defines the persistence operations the ingestion pipeline needs.
// It abstracts Postgres/pgvector (or SQLite) so higher layers never depend on a specific DB.
type DbClient interface {
	// UpsertDocuments writes all records of one file in a single transaction.
	UpsertDocuments(ctx context.Context, parentID string, records []models.DocumentRecord) error
	GetDocumentsByParent(ctx context.Context, parentID string) ([]models.DocumentRecord, error)
	CountDocuments(ctx context.Context) (int, error)

	Close() error
}

type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// DocumentExtractor turns one file on disk into plain text.
// Failures are reported inside the result, never as a separate error.
type DocumentExtractor interface {
	Extract(ctx context.Context, file models.SourceFile) models.ExtractionResult
}
