// Package text splits sanitized page text into overlapping, token-bounded
// chunks, the unit of embedding and retrieval.
package text

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultMaxTokens     = 800
	DefaultOverlapTokens = 100
)

type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// TokenCounter estimates provider token usage for a string. The chunk-size
// guarantee is only as good as this estimate: if the provider bills on a
// different unit, the budget degrades silently.
type TokenCounter func(s string) int

// EstimateTokens approximates Gemini token accounting at ~4 characters per
// token, matching what the embedding batches are sized against.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}

type Options struct {
	MaxTokens     int
	OverlapTokens int
	Counter       TokenCounter
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:     DefaultMaxTokens,
		OverlapTokens: DefaultOverlapTokens,
		Counter:       EstimateTokens,
	}
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*\s*`)

// Split breaks text into chunks whose token estimate stays within
// opts.MaxTokens, preferring paragraph boundaries, then sentences, then
// words. Consecutive chunks share opts.OverlapTokens of trailing/leading
// content. A single word larger than the budget becomes its own oversized
// chunk; that is the one permitted overflow. Indices are assigned
// sequentially from 0.
func Split(text string, opts Options) ([]Chunk, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Counter == nil {
		opts.Counter = EstimateTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.OverlapTokens >= opts.MaxTokens {
		return nil, fmt.Errorf("overlap_tokens (%d) must be smaller than max_chunk_tokens (%d)",
			opts.OverlapTokens, opts.MaxTokens)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	units := splitUnits(trimmed, opts.Counter, opts.MaxTokens)

	var chunks []Chunk
	cur := ""
	fresh := false // cur holds at least one unit beyond carried-over overlap

	flush := func() {
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    cur,
			TokenCount: opts.Counter(cur),
		})
		cur = overlapTail(cur, opts.OverlapTokens, opts.Counter)
		fresh = false
	}

	for _, u := range units {
		candidate := u
		if cur != "" {
			candidate = cur + " " + u
		}
		if cur != "" && opts.Counter(candidate) > opts.MaxTokens {
			if fresh {
				flush()
			} else {
				// Only overlap so far; shrink it rather than emit a chunk
				// that duplicates the previous one.
				cur = ""
			}
			candidate = u
			if cur != "" {
				candidate = cur + " " + u
			}
			if cur != "" && opts.Counter(candidate) > opts.MaxTokens {
				// Even the carried overlap plus this unit overflows; the
				// budget wins over continuity.
				cur = ""
				candidate = u
			}
		}
		cur = candidate
		fresh = true
	}
	if fresh {
		flush()
	}

	return chunks, nil
}

// splitUnits reduces text to atomic pieces each within the token budget
// where possible: paragraphs first, oversized paragraphs by sentence,
// oversized sentences by word.
func splitUnits(text string, count TokenCounter, maxTokens int) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if count(para) <= maxTokens {
			units = append(units, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if count(sent) <= maxTokens {
				units = append(units, sent)
				continue
			}
			units = append(units, strings.Fields(sent)...)
		}
	}
	return units
}

func splitSentences(s string) []string {
	matches := sentenceRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return []string{s}
	}
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

// overlapTail returns the suffix of content worth roughly overlap tokens,
// cut on word boundaries.
func overlapTail(content string, overlap int, count TokenCounter) string {
	if overlap <= 0 {
		return ""
	}
	words := strings.Fields(content)
	tokens := 0
	i := len(words)
	for i > 0 {
		t := count(words[i-1])
		if tokens+t > overlap {
			break
		}
		tokens += t
		i--
	}
	if i == len(words) {
		return ""
	}
	if i == 0 {
		// The whole chunk fits in the overlap budget; carrying all of it
		// forward would stall progress.
		return ""
	}
	return strings.Join(words[i:], " ")
}
