package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/docembed/internal/config"
)

// IngestConfig tunes the pipeline.
//
// Chunk:      chunker parameters, validated before any I/O.
// Workers:    width of the extraction pool and of the per-file embedding fan-out (e.g., 32).
// Extensions: allow-list for the walker; empty selects DefaultExtensions.
type IngestConfig struct {
	Chunk      ChunkConfig
	Workers    int
	Extensions []string
}

// NewIngestConfig maps the environment configuration onto the pipeline knobs.
func NewIngestConfig(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		Chunk: ChunkConfig{
			MaxLength:     cfg.ChunkSize,
			Overlap:       cfg.ChunkOverlap,
			MinLength:     cfg.MinChunkLength,
			SentenceSplit: cfg.SentenceSplit,
		},
		Workers:    cfg.Workers,
		Extensions: cfg.Extensions,
	}
}

func (c *IngestConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: ingest configuration is nil", ErrInvalidChunkConfig)
	}
	if err := c.Chunk.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS (%d) must be at least 1", c.Workers)
	}
	return nil
}
