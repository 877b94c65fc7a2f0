package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"samhq.app/sam/core/config"
)

const braveBaseURL = "https://api.search.brave.com/res/v1"

// BraveSearch queries the Brave Search API.
type BraveSearch struct {
	cfg        config.BraveConfig
	baseURL    string
	httpClient *http.Client
}

func NewBraveSearch(cfg config.BraveConfig) *BraveSearch {
	return &BraveSearch{
		cfg:        cfg,
		baseURL:    braveBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint.
func (b *BraveSearch) WithBaseURL(u string) *BraveSearch {
	b.baseURL = u
	return b
}

type webSearchParams struct {
	Query string `json:"query" jsonschema_description:"The query to search for."`
}

func (b *BraveSearch) Definition() Definition {
	return Func(
		"Search the internet for information that matches the given query.\n"+
			"The search is location aware and will return results based on the user's location.",
		func(ctx context.Context, args webSearchParams, _ CallContext) (string, error) {
			return b.Search(ctx, args.Query), nil
		},
	)
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns a JSON object of result title to URL, or a short failure text.
func (b *BraveSearch) Search(ctx context.Context, query string) string {
	results, err := b.search(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "web search failed", "query", query, "error", err)
		return "search failed"
	}
	if len(results.Web.Results) == 0 {
		slog.WarnContext(ctx, "web search returned no results", "query", query)
		return "no results found"
	}

	out := make(map[string]string, len(results.Web.Results))
	for _, r := range results.Web.Results {
		out[r.Title] = r.URL
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "search failed"
	}
	return string(data)
}

func (b *BraveSearch) search(ctx context.Context, query string) (*braveResponse, error) {
	searchURL, err := url.Parse(b.baseURL + "/web/search")
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	searchURL.RawQuery = url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.cfg.APIKey)
	if b.cfg.Latitude != "" && b.cfg.Longitude != "" {
		req.Header.Set("X-Loc-Lat", b.cfg.Latitude)
		req.Header.Set("X-Loc-Long", b.cfg.Longitude)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave returned status %d: %s", resp.StatusCode, body)
	}

	var out braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
