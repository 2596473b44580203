// Package reranker calls an external cross-encoder API to reorder search
// candidates by relevance. Unknown providers fall back to identity order so
// the query path degrades instead of failing.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider, apiKey string) *Client {
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL overrides the provider endpoint, used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Rerank returns indices into docs, best first.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	switch c.provider {
	case "jina":
		return c.call(ctx, "https://api.jina.ai/v1/rerank", map[string]interface{}{
			"model":     "jina-reranker-v1-base-en",
			"query":     query,
			"documents": docs,
		}, len(docs))
	case "cohere":
		return c.call(ctx, "https://api.cohere.ai/v1/rerank", map[string]interface{}{
			"model":            "rerank-english-v3.0",
			"query":            query,
			"documents":        docs,
			"top_n":            len(docs),
			"return_documents": false,
		}, len(docs))
	}

	indices := make([]int, len(docs))
	for i := range indices {
		indices[i] = i
	}
	return indices, nil
}

func (c *Client) call(ctx context.Context, url string, reqBody map[string]interface{}, numDocs int) ([]int, error) {
	if c.baseURL != "" {
		url = c.baseURL
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s rerank api error: %d", c.provider, resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	indices := make([]int, 0, numDocs)
	for _, r := range result.Results {
		if r.Index >= 0 && r.Index < numDocs {
			indices = append(indices, r.Index)
		}
	}
	return indices, nil
}
