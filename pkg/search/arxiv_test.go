package search

import (
	"encoding/xml"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Recursive Query Expansion for Web Research</title>
    <summary>We study breadth and depth bounded expansion of search queries.</summary>
    <published>2024-03-01T00:00:00Z</published>
    <link href="http://arxiv.org/abs/2403.00001v1" type="text/html"/>
    <link href="http://arxiv.org/pdf/2403.00001v1" type="application/pdf"/>
  </entry>
  <entry>
    <title> Whitespace Padded Title </title>
    <summary>Second abstract.</summary>
    <published></published>
    <link href="http://arxiv.org/abs/2403.00002v1" type="text/html"/>
  </entry>
  <entry>
    <title></title>
    <summary></summary>
  </entry>
</feed>`

func TestFeedItems(t *testing.T) {
	var feed arxivFeed
	if err := xml.Unmarshal([]byte(sampleFeed), &feed); err != nil {
		t.Fatalf("failed to unmarshal sample feed: %v", err)
	}

	items := feedItems(feed)
	if len(items) != 2 {
		t.Fatalf("feedItems() returned %d items, want 2 (empty entry dropped)", len(items))
	}

	first := items[0]
	if first.URL != "http://arxiv.org/pdf/2403.00001v1" {
		t.Errorf("first item URL = %q, want the PDF link", first.URL)
	}
	if first.Title != "Recursive Query Expansion for Web Research" {
		t.Errorf("first item title = %q", first.Title)
	}

	second := items[1]
	if second.Title != "Whitespace Padded Title" {
		t.Errorf("second item title not trimmed: %q", second.Title)
	}
	if second.URL != "" {
		t.Errorf("second item URL = %q, want empty (no PDF link)", second.URL)
	}
}
