package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// FirecrawlClient searches the web and scrapes page content through the
// Firecrawl search API.
type FirecrawlClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewFirecrawlClient(baseURL, apiKey string) *FirecrawlClient {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	return &FirecrawlClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

type firecrawlSearchRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit,omitempty"`
	ScrapeOptions map[string]interface{} `json:"scrapeOptions,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
}

// Search runs a search-and-scrape call. The caller owns the timeout via ctx.
func (c *FirecrawlClient) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	reqBody := firecrawlSearchRequest{
		Query: query,
		Limit: limit,
		ScrapeOptions: map[string]interface{}{
			"formats": []string{"markdown"},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to marshal request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/search", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))}
	}

	var searchResp firecrawlSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if !searchResp.Success {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("API error: %s", searchResp.Error)}
	}

	items := make([]Item, 0, len(searchResp.Data))
	for _, d := range searchResp.Data {
		content := d.Markdown
		if content == "" {
			content = d.Description
		}
		items = append(items, Item{
			URL:     d.URL,
			Title:   d.Title,
			Content: content,
		})
	}
	return items, nil
}
