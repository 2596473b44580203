// Package weaviate adapts the Weaviate Go client to the vector writer and
// searcher interfaces. Writes use deterministic object IDs so re-ingesting
// the same job overwrites its chunks instead of duplicating them.
package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"webrag/internal/ragerr"
	"webrag/internal/retrieval"
	"webrag/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// UpsertChunks writes records in one batch. Weaviate overwrites objects
// whose ID already exists, which gives the pipeline its idempotency.
func (s *Store) UpsertChunks(ctx context.Context, recs []vector.Record) error {
	if len(recs) == 0 {
		return nil
	}

	batcher := s.client.Batch().ObjectsBatcher()
	for _, rec := range recs {
		batcher = batcher.WithObjects(&models.Object{
			ID:     strfmt.UUID(rec.ID),
			Class:  vector.ClassName,
			Vector: models.C11yVector(rec.Vector),
			Properties: map[string]interface{}{
				"text":           rec.Payload.Text,
				"jobId":          rec.Payload.JobID,
				"sourceUrl":      rec.Payload.SourceURL,
				"chunkIndex":     rec.Payload.ChunkIndex,
				"embeddingModel": rec.Payload.EmbeddingModel,
				"dimension":      rec.Payload.Dimension,
			},
		})
	}

	res, err := batcher.Do(ctx)
	if err != nil {
		return indexError(err)
	}
	for _, obj := range res {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return indexError(fmt.Errorf("object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message))
		}
	}
	return nil
}

// Search runs a nearVector query and flattens hits into candidates ordered
// by certainty. Filters are ANDed equality matches on payload fields.
func (s *Store) Search(ctx context.Context, vec []float32, topK int, where map[string]any) ([]retrieval.Candidate, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "jobId"},
		{Name: "sourceUrl"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...)

	if len(where) > 0 {
		query = query.WithWhere(buildWhere(where))
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, indexError(err)
	}
	if len(res.Errors) > 0 {
		return nil, indexError(fmt.Errorf("graphql error: %v", res.Errors[0].Message))
	}

	var out []retrieval.Candidate
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return out, nil
	}
	hits, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return out, nil
	}
	for _, h := range hits {
		props, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		cand := retrieval.Candidate{}
		if t, ok := props["text"].(string); ok {
			cand.Text = t
		}
		if id, ok := props["jobId"].(string); ok {
			cand.JobID = id
		}
		if u, ok := props["sourceUrl"].(string); ok {
			cand.SourceURL = u
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			cand.ChunkIndex = int(idx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				cand.Score = float32(c)
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

func buildWhere(where map[string]any) *filters.WhereBuilder {
	operands := make([]*filters.WhereBuilder, 0, len(where))
	for field, val := range where {
		w := filters.Where().WithPath([]string{field}).WithOperator(filters.Equal)
		switch v := val.(type) {
		case string:
			w = w.WithValueString(v)
		case int:
			w = w.WithValueInt(int64(v))
		case int64:
			w = w.WithValueInt(v)
		case float64:
			w = w.WithValueInt(int64(v))
		case bool:
			w = w.WithValueBoolean(v)
		default:
			w = w.WithValueString(fmt.Sprintf("%v", v))
		}
		operands = append(operands, w)
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

// EnsureSchema creates or patches the chunk class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewClientAdapter(s.client))
}

// Ready reports whether the index answers its readiness probe.
func (s *Store) Ready(ctx context.Context) bool {
	ok, err := s.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ok
}

// CheckDimension samples one stored vector and compares its length against
// want. No stored objects means no conflict. Run at startup so a changed
// embedding dimension fails fast instead of corrupting the index.
func (s *Store) CheckDimension(ctx context.Context, want int) error {
	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}},
	}
	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithLimit(1).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return indexError(err)
	}
	if len(res.Errors) > 0 {
		return indexError(fmt.Errorf("graphql error: %v", res.Errors[0].Message))
	}

	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	hits, ok := data[vector.ClassName].([]interface{})
	if !ok || len(hits) == 0 {
		return nil
	}
	props, ok := hits[0].(map[string]interface{})
	if !ok {
		return nil
	}
	additional, ok := props["_additional"].(map[string]interface{})
	if !ok {
		return nil
	}
	stored, ok := additional["vector"].([]interface{})
	if !ok {
		return nil
	}
	if len(stored) != want {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, configured for %d",
			ragerr.ErrDimensionMismatch, len(stored), want)
	}
	return nil
}

// indexError classifies index failures: schema and dimension conflicts are
// permanent, everything else is assumed to be a transient outage.
func indexError(err error) error {
	msg := strings.ToLower(err.Error())
	permanent := strings.Contains(msg, "dimension") || strings.Contains(msg, "schema")
	return &ragerr.VectorIndexError{Transient: !permanent, Err: err}
}
