package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/docembed/internal/models"
)

type Ingestor interface {
	Run(ctx context.Context, root string) (*Report, error)
	ProcessContent(ctx context.Context, res models.ExtractionResult) (int, error)
}

var _ Ingestor = (*DocumentIngestor)(nil)
