// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/markdave123-py/docembed/internal/config"
	"github.com/markdave123-py/docembed/internal/core"
	db "github.com/markdave123-py/docembed/internal/core/database"
	"github.com/markdave123-py/docembed/internal/core/ingestion_engine"
	"github.com/markdave123-py/docembed/internal/core/llm"
)

type App struct {
	DBClient core.DbClient
	Ingestor ingestion_engine.Ingestor

	closers []func() error
}

// NewApp wires the store, extractor and embedder selected by cfg. The chunk
// configuration and the provider names are validated before any connection is
// opened.
func NewApp(ctx context.Context, cfg *config.Config, opts ...ingestion_engine.Option) (*App, error) {
	ingCfg := ingestion_engine.NewIngestConfig(cfg)
	if err := ingCfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateProviders(cfg); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	slog.Info("database initialized and ready")

	httpClient := newHTTPClient(cfg.Workers)

	extractor, err := newExtractor(cfg, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := a.newEmbedder(appCtx, cfg, httpClient)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	docIngestor, err := ingestion_engine.NewDocumentIngestor(dbClient, extractor, embedder, ingCfg, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ingestor = docIngestor

	slog.Info("ingestor ready",
		"extractor", cfg.Extractor,
		"embed_provider", cfg.EmbedProvider,
		"embed_model", cfg.EmbedModel,
		"workers", cfg.Workers)
	return a, nil
}

// newHTTPClient is the pooled client shared by the extraction and embedding calls.
// Timeouts are applied per call by each client.
func newHTTPClient(workers int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 2 * workers
	transport.MaxIdleConnsPerHost = workers
	transport.IdleConnTimeout = 90 * time.Second
	return &http.Client{Transport: transport}
}

func validateProviders(cfg *config.Config) error {
	switch cfg.Extractor {
	case "tika", "docconv":
	default:
		return unknownExtractor(cfg.Extractor)
	}
	switch cfg.EmbedProvider {
	case "ollama", "gemini":
	default:
		return unknownEmbedProvider(cfg.EmbedProvider)
	}
	return nil
}

func unknownExtractor(name string) error {
	return fmt.Errorf("unknown EXTRACTOR %q: must be tika or docconv", name)
}

func unknownEmbedProvider(name string) error {
	return fmt.Errorf("unknown EMBED_PROVIDER %q: must be ollama or gemini", name)
}

func newExtractor(cfg *config.Config, httpClient *http.Client) (core.DocumentExtractor, error) {
	switch cfg.Extractor {
	case "tika":
		return ingestion_engine.NewTikaExtractor(cfg.TikaURL, httpClient, cfg.TikaTimeout), nil
	case "docconv":
		return ingestion_engine.NewDocconvExtractor(cfg.DocconvReadability), nil
	default:
		return nil, unknownExtractor(cfg.Extractor)
	}
}

func (a *App) newEmbedder(ctx context.Context, cfg *config.Config, httpClient *http.Client) (core.EmbeddingProvider, error) {
	var embedder core.EmbeddingProvider

	switch cfg.EmbedProvider {
	case "ollama":
		o, err := llm.NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbedModel, httpClient, cfg.EmbedTimeout)
		if err != nil {
			return nil, err
		}
		embedder = o
	case "gemini":
		g, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		embedder = g
	default:
		return nil, unknownEmbedProvider(cfg.EmbedProvider)
	}

	if cfg.EmbedMaxAttempts > 1 {
		return llm.NewRetryingEmbedder(embedder, cfg.EmbedMaxAttempts, cfg.EmbedRetryDelay)
	}
	return embedder, nil
}

// Close releases everything NewApp acquired, last acquired first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
