package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ai-innovation-art/quasar/internal/tools"
)

// SearchConfig configures the web_search backends. With a Brave API key
// the Brave endpoint is used; otherwise the DuckDuckGo instant-answer
// API serves as the zero-credential fallback.
type SearchConfig struct {
	BraveAPIKey  string
	ResultCount  int
	HTTPTimeout  time.Duration
}

// SearchTool implements web_search.
type SearchTool struct {
	config SearchConfig
	client *http.Client
}

// NewSearchTool creates a web_search tool.
func NewSearchTool(cfg SearchConfig) *SearchTool {
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = 5
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SearchTool{config: cfg, client: &http.Client{Timeout: timeout}}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the web and return result titles, URLs, and snippets."
}

func (t *SearchTool) Schema() []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search query."},
			"count": map[string]any{"type": "integer", "description": "How many results to return.", "minimum": 1, "maximum": 10},
		},
		"required": []string{"query"},
	})
	return payload
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.ErrorResult("", fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return tools.ErrorResult("", "query is required"), nil
	}
	count := input.Count
	if count <= 0 || count > 10 {
		count = t.config.ResultCount
	}

	var results []SearchResult
	var err error
	if t.config.BraveAPIKey != "" {
		results, err = t.braveSearch(ctx, input.Query, count)
	} else {
		results, err = t.duckduckgoSearch(ctx, input.Query, count)
	}
	if err != nil {
		return tools.ErrorResult("", fmt.Sprintf("web search: %v", err)), nil
	}

	return tools.JSONResult(map[string]any{
		"query":   input.Query,
		"results": results,
	}), nil
}

func (t *SearchTool) braveSearch(ctx context.Context, query string, count int) ([]SearchResult, error) {
	endpoint := "https://api.search.brave.com/res/v1/web/search?q=" + url.QueryEscape(query) +
		fmt.Sprintf("&count=%d", count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.config.BraveAPIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search: status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, count)
	for _, r := range payload.Web.Results {
		if len(results) >= count {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

func (t *SearchTool) duckduckgoSearch(ctx context.Context, query string, count int) ([]SearchResult, error) {
	endpoint := "https://api.duckduckgo.com/?format=json&no_html=1&q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}

	var payload struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var results []SearchResult
	if payload.AbstractText != "" {
		results = append(results, SearchResult{Title: payload.Heading, URL: payload.AbstractURL, Snippet: payload.AbstractText})
	}
	for _, topic := range payload.RelatedTopics {
		if len(results) >= count {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		results = append(results, SearchResult{Title: topic.Text, URL: topic.FirstURL, Snippet: topic.Text})
	}
	return results, nil
}
