package searx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/resilience"
)

// Client queries a SearxNG instance for live web results. The engine
// does not return comparable relevance scores, so hits get synthetic
// rank-derived scores 1/(1+rank); fusion only consumes ranks anyway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Search(ctx context.Context, queryText string, region domain.Region, topK int) ([]domain.ScoredHit, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, fmt.Errorf("searx search: empty query")
	}
	if topK <= 0 {
		topK = 5
	}

	params := url.Values{}
	params.Set("q", queryText)
	params.Set("format", "json")
	params.Set("language", searchLanguage(region))
	params.Set("categories", "general")

	var searchResp struct {
		Results []struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}

	call := func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/search?"+params.Encode(), &searchResp)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "searx.search", call, classifySearxError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredHit, 0, topK)
	for rank, r := range searchResp.Results {
		if len(out) == topK {
			break
		}
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		out = append(out, domain.ScoredHit{
			Document: domain.Document{
				ID:      r.URL,
				Title:   r.Title,
				Locator: r.URL,
				Excerpt: r.Content,
			},
			Score: 1.0 / float64(1+rank),
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create searx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("searx request: %w", err)
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
		return fmt.Errorf("decode searx response: %w", err)
	}
	return nil
}

func searchLanguage(region domain.Region) string {
	if region == domain.RegionDE {
		return "de-DE"
	}
	return "en-US"
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("searx status: %s", e.Status)
	}
	return fmt.Sprintf("searx status: %s: %s", e.Status, e.Body)
}
