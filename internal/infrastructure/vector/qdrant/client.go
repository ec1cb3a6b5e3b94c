package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/resilience"
)

// Client is the semantic index adapter. Points carry the regulatory
// document payload: doc_id, title, region, locator, excerpt. Search is
// always filtered to one region so US and DE guidance never mix.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	region domain.Region,
	topK int,
) ([]domain.ScoredHit, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("qdrant search: empty query vector")
	}
	if topK <= 0 {
		topK = 5
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if region.Known() {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key":   "region",
					"match": map[string]any{"value": strings.ToLower(region.String())},
				},
			},
		}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, fmt.Sprintf("/collections/%s/points/search", c.collection), reqBody, &searchResp)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.search", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredHit{
			Document: domain.Document{
				ID:      payloadString(r.Payload, "doc_id"),
				Title:   payloadString(r.Payload, "title"),
				Region:  domain.ParseRegion(payloadString(r.Payload, "region")),
				Locator: payloadString(r.Payload, "locator"),
				Excerpt: payloadString(r.Payload, "excerpt"),
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal qdrant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant status: %s", e.Status)
	}
	return fmt.Sprintf("qdrant status: %s: %s", e.Status, e.Body)
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
