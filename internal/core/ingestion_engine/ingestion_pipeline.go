package ingestion_engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docembed/internal/core"
	"github.com/markdave123-py/docembed/internal/models"
)

var (
	ErrStoreRequired     = errors.New("document store is required")
	ErrExtractorRequired = errors.New("document extractor is required")
	ErrEmbedderRequired  = errors.New("embedding provider is required")

	// ErrNoChunks is recorded for files whose text produced no chunk worth embedding.
	ErrNoChunks = errors.New("no chunk survived splitting")
	// ErrNoEmbeddings is recorded for files where every chunk failed to embed.
	ErrNoEmbeddings = errors.New("no chunk could be embedded")

	errEmptyVector = errors.New("provider returned an empty vector")
)

// Failure stages recorded in a Report.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// DocumentIngestor orchestrates one pass over a directory tree:
//
// store:     persistence for embedded chunks, written by one goroutine only.
// extractor: turns files into text (Tika, docconv).
// embedder:  embedding provider (Ollama/Gemini, optionally retrying).
// chunker:   splits extracted text, configured from cfg.Chunk.
// walker:    enumerates candidate files.
// observer:  progress sink, advisory only.
type DocumentIngestor struct {
	store     core.DbClient
	extractor core.DocumentExtractor
	embedder  core.EmbeddingProvider
	chunker   *Chunker
	walker    *DirectoryWalker
	cfg       *IngestConfig
	observer  Observer
	logger    *slog.Logger
}

// Option configures a DocumentIngestor.
type Option func(*DocumentIngestor)

// WithObserver sets the progress observer. Default is NopObserver.
func WithObserver(o Observer) Option {
	return func(i *DocumentIngestor) {
		if o != nil {
			i.observer = o
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *DocumentIngestor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithWalker replaces the walker built from cfg.Extensions.
func WithWalker(w *DirectoryWalker) Option {
	return func(i *DocumentIngestor) {
		if w != nil {
			i.walker = w
		}
	}
}

// NewDocumentIngestor validates cfg before anything touches the filesystem or
// the network; an invalid chunk configuration is returned as is.
func NewDocumentIngestor(
	store core.DbClient,
	extractor core.DocumentExtractor,
	embedder core.EmbeddingProvider,
	cfg *IngestConfig,
	opts ...Option,
) (*DocumentIngestor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chunker, err := NewChunker(cfg.Chunk)
	if err != nil {
		return nil, err
	}

	i := &DocumentIngestor{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		chunker:   chunker,
		cfg:       cfg,
		observer:  NopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "ingestor")
	if i.walker == nil {
		i.walker = NewDirectoryWalker(cfg.Extensions, i.logger)
	}
	return i, nil
}

// Report summarises one Run.
type Report struct {
	RunID          uuid.UUID              `json:"run_id"`
	Root           string                 `json:"root"`
	FilesSeen      int                    `json:"files_seen"`
	FilesIngested  int                    `json:"files_ingested"`
	ChunksTotal    int                    `json:"chunks_total"`
	ChunksEmbedded int                    `json:"chunks_embedded"`
	ChunksStored   int                    `json:"chunks_stored"`
	Failures       []models.IngestFailure `json:"failures"`
	Duration       time.Duration          `json:"duration"`
}

func (r *Report) addFailure(path, stage, message string) {
	r.Failures = append(r.Failures, models.IngestFailure{Path: path, Stage: stage, Message: message})
}

// fileStats counts what happened to one file.
type fileStats struct {
	chunks   int
	embedded int
	stored   int
}

// stageError tags an error with the pipeline stage it came from.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Run walks root, extracts files on a bounded pool and hands every result to a
// single consumer that chunks, embeds and stores it. A failing file is recorded
// in the report and never stops the run. A missing root or an unusable pool is
// fatal. When ctx is cancelled no new file is scheduled and the partial report
// is returned with ctx.Err().
func (i *DocumentIngestor) Run(ctx context.Context, root string) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New(), Root: root}
	logger := i.logger.With("run_id", report.RunID.String())

	files, err := i.walker.Walk(ctx, root)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(i.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create extraction pool: %w", err)
	}
	defer pool.Release()

	logger.Info("ingestion started", "root", root, "workers", i.cfg.Workers)

	results := make(chan models.ExtractionResult, i.cfg.Workers)
	go func() {
		var wg sync.WaitGroup
		defer close(results)
		defer wg.Wait()

		for file := range files {
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				results <- i.extract(ctx, file)
			})
			if err != nil {
				wg.Done()
				results <- models.ExtractionResult{File: file, Err: fmt.Errorf("schedule extraction: %w", err)}
			}
		}
	}()

	for res := range results {
		if ctx.Err() != nil {
			// drain so the producers can exit
			continue
		}
		i.consume(ctx, logger, report, res)
	}

	report.Duration = time.Since(start)
	i.observer.RunFinished(report)
	logger.Info("ingestion finished",
		"files_seen", report.FilesSeen,
		"files_ingested", report.FilesIngested,
		"chunks_stored", report.ChunksStored,
		"failures", len(report.Failures),
		"took", report.Duration)

	return report, ctx.Err()
}

// consume handles one extraction result and updates the report.
func (i *DocumentIngestor) consume(ctx context.Context, logger *slog.Logger, report *Report, res models.ExtractionResult) {
	report.FilesSeen++
	i.observer.FileExtracted(res)

	if res.Failed() {
		logger.Warn("extraction failed", "path", res.File.Path, "stage", StageExtract, "err", res.Err)
		report.addFailure(res.File.Path, StageExtract, res.Message())
		i.observer.FileStored(res.File, 0, 0, res.Err)
		return
	}

	stats, err := i.processContent(ctx, logger, res)
	report.ChunksTotal += stats.chunks
	report.ChunksEmbedded += stats.embedded
	report.ChunksStored += stats.stored
	i.observer.FileStored(res.File, stats.chunks, stats.stored, err)

	if err != nil {
		stage := StageStore
		var se *stageError
		if errors.As(err, &se) {
			stage, err = se.stage, se.err
		}
		logger.Warn("file not ingested", "path", res.File.Path, "stage", stage, "err", err)
		report.addFailure(res.File.Path, stage, err.Error())
		return
	}

	report.FilesIngested++
	logger.Debug("file ingested", "path", res.File.Path, "chunks", stats.chunks, "stored", stats.stored)
}

// extract runs the extractor and turns a panic into a failed result.
func (i *DocumentIngestor) extract(ctx context.Context, file models.SourceFile) (res models.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ExtractionResult{File: file, Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()

	res = i.extractor.Extract(ctx, file)
	res.File = file
	return res
}

// ProcessContent chunks, embeds and stores one successful extraction result and
// returns the number of rows written. Chunks whose embedding fails are left out;
// the file fails only when none survives or the store rejects the batch.
func (i *DocumentIngestor) ProcessContent(ctx context.Context, res models.ExtractionResult) (int, error) {
	if res.Failed() {
		return 0, res.Err
	}
	stats, err := i.processContent(ctx, i.logger, res)
	return stats.stored, err
}

func (i *DocumentIngestor) processContent(ctx context.Context, logger *slog.Logger, res models.ExtractionResult) (fileStats, error) {
	var stats fileStats

	chunks := i.chunker.Split(res.Content)
	stats.chunks = len(chunks)
	if len(chunks) == 0 {
		return stats, &stageError{stage: StageChunk, err: ErrNoChunks}
	}

	vectors := i.embedChunks(ctx, logger, res.File, chunks)

	parentID := ParentID(res.File.Path)
	records := make([]models.DocumentRecord, 0, len(chunks))
	for idx, ch := range chunks {
		if vectors[idx] == nil {
			continue
		}
		records = append(records, models.DocumentRecord{
			ID:        DocumentID(parentID, ch.Index),
			Source:    res.File.Path,
			Type:      res.File.ContentType,
			Chunk:     ch.Text,
			Embedding: vectors[idx],
			ParentID:  parentID,
		})
	}
	stats.embedded = len(records)
	if len(records) == 0 {
		return stats, &stageError{stage: StageEmbed, err: ErrNoEmbeddings}
	}

	if err := i.store.UpsertDocuments(ctx, parentID, records); err != nil {
		return stats, &stageError{stage: StageStore, err: err}
	}
	stats.stored = len(records)
	return stats, nil
}

// embedChunks embeds every chunk concurrently. The result is indexed like
// chunks; a nil entry marks a chunk whose embedding failed. The observer is
// told about each chunk as its call completes.
func (i *DocumentIngestor) embedChunks(ctx context.Context, logger *slog.Logger, file models.SourceFile, chunks []models.Chunk) [][]float32 {
	vectors := make([][]float32, len(chunks))

	var g errgroup.Group
	g.SetLimit(i.cfg.Workers)
	for idx, ch := range chunks {
		g.Go(func() error {
			vec, err := i.embedder.EmbedText(ctx, ch.Text)
			if err == nil && len(vec) == 0 {
				err = errEmptyVector
			}
			i.observer.ChunkEmbedded(file, ch.Index, err)
			if err != nil {
				logger.Warn("embedding failed", "path", file.Path, "chunk", ch.Index, "stage", StageEmbed, "err", err)
				return nil
			}
			vectors[idx] = vec
			return nil
		})
	}
	_ = g.Wait()

	return vectors
}

// ParentID is the stable grouping key of every chunk of one file: the hex MD5
// of its path.
func ParentID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// DocumentID keys one chunk as "{parent_id}-{chunk_index}".
func DocumentID(parentID string, index int) string {
	return fmt.Sprintf("%s-%d", parentID, index)
}
