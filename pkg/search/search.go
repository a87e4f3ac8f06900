package search

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Item is a single search result. URL and Content may be empty; callers are
// expected to discard items they cannot use.
type Item struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Fetcher retrieves web content for a search query. Implementations honor
// ctx cancellation and deadlines; a failed or timed-out call returns a
// *FetchError.
type Fetcher interface {
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// FetchError wraps a failed search call with the query that caused it.
type FetchError struct {
	Query string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTimeout reports whether err represents a fetch timeout rather than a
// hard failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
