// Package gemini adapts the Google generative AI SDK to the embedding and
// generation interfaces used by the ingestion and query pipelines.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"webrag/internal/ragerr"
)

type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

func (e *Embedder) Close() error { return e.client.Close() }

// EmbedBatch embeds document chunks in a single batched call, preserving
// input order. The retrieval-document task type matches how queries are
// embedded on the other side.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "size", len(texts))

	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, &ragerr.EmbeddingError{Transient: transientProviderError(err), Err: err}
	}
	if len(res.Embeddings) != len(texts) {
		return nil, &ragerr.EmbeddingError{
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(res.Embeddings), len(texts)),
		}
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, &ragerr.EmbeddingError{Err: fmt.Errorf("empty embedding at index %d", i)}
		}
		out[i] = emb.Values
	}
	return out, nil
}

// EmbedQuery embeds a user question with the retrieval-query task type.
func (e *Embedder) EmbedQuery(ctx context.Context, question string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	res, err := em.EmbedContent(ctx, genai.Text(question))
	if err != nil {
		return nil, &ragerr.EmbeddingError{Transient: transientProviderError(err), Err: err}
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &ragerr.EmbeddingError{Err: fmt.Errorf("empty embedding received")}
	}
	return res.Embedding.Values, nil
}

// transientProviderError classifies provider failures. Rate limits and
// overload resolve on their own; auth and permission failures do not.
// Unknown errors are treated as transient since transport blips dominate.
func transientProviderError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"api key", "permission", "unauthorized", "401", "403", "invalid argument"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
