package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docembed/internal/core"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if modelName == "" || modelName == DefaultEmbedModel {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedText embeds a single chunk via EmbedContent.
func (g *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.modelName)
	em.TaskType = genai.TaskTypeRetrievalDocument

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding.Values, nil
}
