package examgen

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingClient embeds text through the OpenAI embeddings API, singly or in
// batches.
type EmbeddingClient struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	batchSize int
}

// NewEmbeddingClient creates an embedding client. batchSize bounds how many
// texts go into one API call.
func NewEmbeddingClient(client *openai.Client, model string, batchSize int) *EmbeddingClient {
	if batchSize < 1 {
		batchSize = 1
	}
	return &EmbeddingClient{
		client:    client,
		model:     openai.EmbeddingModel(model),
		batchSize: batchSize,
	}
}

// Embed embeds a single text.
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedBatch embeds texts in API-sized batches, preserving input order. A
// failing batch aborts the whole call.
func (e *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: e.model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding batch starting at %d returned %d vectors for %d texts", start, len(resp.Data), end-start)
		}
		for _, item := range resp.Data {
			embeddings = append(embeddings, item.Embedding)
		}
		VerboseLog("Embedded batch %d-%d of %d texts", start, end, len(texts))
	}

	return embeddings, nil
}
