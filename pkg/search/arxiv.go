package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ArxivClient searches arXiv for academic sources. Abstracts serve as the
// page content; the PDF link serves as the source URL.
type ArxivClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewArxivClient() *ArxivClient {
	return &ArxivClient{
		BaseURL:    "https://export.arxiv.org/api/query",
		HTTPClient: &http.Client{},
	}
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []arxivLink `xml:"link"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// Search queries the arXiv API and maps each feed entry to an Item.
func (c *ArxivClient) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(limit))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
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

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &FetchError{Query: query, Err: fmt.Errorf("failed to unmarshal XML: %w", err)}
	}

	return feedItems(feed), nil
}

func feedItems(feed arxivFeed) []Item {
	items := make([]Item, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		title := strings.TrimSpace(entry.Title)
		summary := strings.TrimSpace(entry.Summary)
		if title == "" && summary == "" {
			continue
		}

		pdfLink := ""
		for _, link := range entry.Link {
			if link.Type == "application/pdf" {
				pdfLink = link.Href
				break
			}
		}

		content := summary
		if title != "" {
			content = fmt.Sprintf("%s\n\n%s", title, summary)
		}
		if entry.Published != "" {
			content += "\n\nPublished: " + entry.Published
		}

		items = append(items, Item{
			URL:     pdfLink,
			Title:   title,
			Content: content,
		})
	}
	return items
}
