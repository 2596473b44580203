// Package retrieval implements the query-time orchestration: embed the
// question, search the vector index, optionally re-rank, assemble a
// bounded context, and generate a grounded answer with citations.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"webrag/internal/ragerr"
)

// NoContextAnswer is returned verbatim when the index has nothing relevant.
// Never replaced by a generated answer: no context means no citations.
const NoContextAnswer = "no relevant content"

const snippetLimit = 300

// Candidate is one search hit, payload flattened.
type Candidate struct {
	Text       string
	JobID      string
	SourceURL  string
	ChunkIndex int
	Score      float32
}

type Source struct {
	Text           string  `json:"text"`
	SourceURL      string  `json:"source_url"`
	RelevanceScore float32 `json:"relevance_score"`
}

type Metadata struct {
	ChunksRetrieved  int    `json:"chunks_retrieved"`
	EmbeddingModel   string `json:"embedding_model"`
	Dimension        int    `json:"embedding_dimension"`
	GenerationModel  string `json:"generation_model"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	TopK             int    `json:"top_k"`
}

type Result struct {
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Metadata Metadata `json:"metadata"`
}

// NoContext reports whether the result is the zero-candidate sentinel.
func (r *Result) NoContext() bool {
	return r.Answer == NoContextAnswer && len(r.Sources) == 0
}

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int, filters map[string]any) ([]Candidate, error)
}

type Reranker interface {
	// Rerank returns indices into docs, best first.
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	DefaultTopK     int
	MaxTopK         int
	EmbeddingModel  string
	Dimension       int
	GenerationModel string
	MaxContextChars int
}

type Service struct {
	embedder  Embedder
	store     Searcher
	reranker  Reranker // nil disables the re-ranking pass
	generator Generator
	opts      Options
	logger    *QueryLogger
}

func NewService(e Embedder, s Searcher, r Reranker, g Generator, opts Options, l *QueryLogger) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	return &Service{embedder: e, store: s, reranker: r, generator: g, opts: opts, logger: l}
}

// Query runs the full retrieval/generation path for one question.
func (s *Service) Query(ctx context.Context, question string, topK int, filters map[string]any) (*Result, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ragerr.ErrValidation)
	}
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}
	if topK > s.opts.MaxTopK {
		topK = s.opts.MaxTopK
	}

	// 1. Embed the question, one retry on transient failure.
	vec, err := retryOnce(ctx, func() ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, question)
	})
	if err != nil {
		return nil, err
	}
	if len(vec) != s.opts.Dimension {
		return nil, &ragerr.EmbeddingError{Err: fmt.Errorf("%w: query vector has %d dims, configured %d",
			ragerr.ErrDimensionMismatch, len(vec), s.opts.Dimension)}
	}

	// 2. Nearest neighbors, filter applied by the index.
	candidates, err := s.store.Search(ctx, vec, topK, filters)
	if err != nil {
		return nil, err
	}

	// 3. Zero candidates short-circuits; never generate from no context.
	if len(candidates) == 0 {
		res := &Result{
			Answer:   NoContextAnswer,
			Sources:  []Source{},
			Metadata: s.metadata(0, topK, start),
		}
		s.log(question, res, start)
		return res, nil
	}

	// 4. Optional re-rank; on failure keep the similarity order.
	candidates = s.rerank(ctx, question, candidates)

	// 5-6. Assemble context and generate, one retry on transient failure.
	prompt, used := buildPrompt(question, candidates, s.opts.MaxContextChars)
	answer, err := retryOnce(ctx, func() (string, error) {
		return s.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	// 7. Citations and metadata. Only candidates that made it into the
	// prompt are cited; the context budget can drop trailing ones.
	sources := make([]Source, len(used))
	for i, c := range used {
		sources[i] = Source{
			Text:           snippet(c.Text),
			SourceURL:      c.SourceURL,
			RelevanceScore: c.Score,
		}
	}

	res := &Result{
		Answer:   answer,
		Sources:  sources,
		Metadata: s.metadata(len(candidates), topK, start),
	}
	s.log(question, res, start)
	return res, nil
}

func (s *Service) rerank(ctx context.Context, question string, candidates []Candidate) []Candidate {
	if s.reranker == nil || len(candidates) < 2 {
		return candidates
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	indices, err := s.reranker.Rerank(ctx, question, docs)
	if err != nil {
		slog.WarnContext(ctx, "rerank failed, keeping similarity order", "error", err)
		return candidates
	}

	// Dedupe the returned indices and append anything the reranker omitted
	// in original order, so ties and gaps resolve by similarity rank.
	seen := make(map[int]bool, len(candidates))
	reranked := make([]Candidate, 0, len(candidates))
	for _, idx := range indices {
		if idx >= 0 && idx < len(candidates) && !seen[idx] {
			reranked = append(reranked, candidates[idx])
			seen[idx] = true
		}
	}
	for i, c := range candidates {
		if !seen[i] {
			reranked = append(reranked, c)
		}
	}
	return reranked
}

// retryOnce retries a provider call exactly once when the failure is
// transient, then surfaces the error.
func retryOnce[T any](ctx context.Context, call func() (T, error)) (T, error) {
	v, err := call()
	if err != nil && ragerr.IsTransient(err) && ctx.Err() == nil {
		v, err = call()
	}
	return v, err
}

func (s *Service) metadata(retrieved, topK int, start time.Time) Metadata {
	return Metadata{
		ChunksRetrieved:  retrieved,
		EmbeddingModel:   s.opts.EmbeddingModel,
		Dimension:        s.opts.Dimension,
		GenerationModel:  s.opts.GenerationModel,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		TopK:             topK,
	}
}

func (s *Service) log(question string, res *Result, start time.Time) {
	if s.logger == nil {
		return
	}
	s.logger.Log(QueryLogEntry{
		Question:   question,
		NumSources: len(res.Sources),
		NoContext:  res.NoContext(),
		Duration:   time.Since(start),
	})
}

// buildPrompt formats the grounded-answer prompt: numbered sources followed
// by the question, instructing the model to answer only from the context.
// It also returns the candidates that fit the context budget, so callers
// cite only what the generator actually saw.
func buildPrompt(question string, candidates []Candidate, maxContextChars int) (string, []Candidate) {
	var ctxB strings.Builder
	used := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		block := fmt.Sprintf("Source %d (%s):\n%s\n", i+1, c.SourceURL, c.Text)
		if i > 0 && ctxB.Len()+len(block) > maxContextChars {
			break
		}
		if i > 0 {
			ctxB.WriteString("\n---\n")
		}
		ctxB.WriteString(block)
		used = append(used, c)
	}

	prompt := fmt.Sprintf(`You are a helpful AI assistant that answers questions based ONLY on the provided context.
INSTRUCTIONS:
Read the context sources carefully
Answer the question using ONLY information from the context
If the context doesn't contain enough information, respond: "I cannot answer this question based on the provided context."
Cite which source number(s) you used (e.g., "According to Source 1...")
Be concise but complete
Do not add information not present in the context
CONTEXT:
%s
QUESTION: %s
ANSWER:`, ctxB.String(), question)
	return prompt, used
}

// snippet truncates citation text to snippetLimit bytes without splitting
// a multi-byte rune.
func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
