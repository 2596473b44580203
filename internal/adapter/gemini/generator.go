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

// SafetyRefusal is returned verbatim when the model blocks the response,
// so callers still get a well-formed grounded answer.
const SafetyRefusal = "I cannot answer this question based on the provided context."

type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator builds a generation client tuned for deterministic grounded
// answers: temperature 0, greedy decoding, a 500 token cap.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Close() error { return g.client.Close() }

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating answer", "model", g.model, "prompt_length", len(prompt))

	gm := g.client.GenerativeModel(g.model)
	gm.SetTemperature(0)
	gm.SetMaxOutputTokens(500)
	gm.SetTopP(1)
	gm.SetTopK(1)

	res, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &ragerr.GenerationError{Transient: transientProviderError(err), Err: err}
	}
	if len(res.Candidates) == 0 {
		return "", &ragerr.GenerationError{Err: fmt.Errorf("no candidates returned")}
	}

	cand := res.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return SafetyRefusal, nil
	}
	if cand.Content == nil {
		return "", &ragerr.GenerationError{Err: fmt.Errorf("candidate has no content")}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", &ragerr.GenerationError{Err: fmt.Errorf("candidate has no text parts")}
	}
	return answer, nil
}
