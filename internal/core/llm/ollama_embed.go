package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/markdave123-py/docembed/internal/core"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("embedding response has no vector")

// DefaultEmbedModel is the Ollama model used when none is configured.
const DefaultEmbedModel = "nomic-embed-text"

// OllamaEmbedder embeds one text per request against an Ollama server.
type OllamaEmbedder struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ core.EmbeddingProvider = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder points at host (e.g. http://localhost:11434). timeout
// bounds each call; zero leaves only the caller's deadline.
func NewOllamaEmbedder(host, model string, httpClient *http.Client, timeout time.Duration) (*OllamaEmbedder, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: want scheme://host[:port]", host)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if model == "" {
		model = DefaultEmbedModel
	}

	return &OllamaEmbedder{
		client:  api.NewClient(u, httpClient),
		model:   model,
		timeout: timeout,
		logger:  slog.Default().With("component", "ollama", "model", model),
	}, nil
}

// EmbedText returns the embedding of text. Transport errors, error statuses,
// undecodable bodies and empty vectors are all returned as errors.
func (o *OllamaEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	o.logger.Debug("embedded", "chars", len(text), "dim", len(out))
	return out, nil
}
