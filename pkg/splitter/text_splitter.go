package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo text splitter
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}

// Trim returns a prefix of text that fits within maxLen units, preferring
// paragraph and sentence boundaries over hard truncation. Trimming an
// already-short string returns it unchanged.
func Trim(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	ts := NewRecursiveCharacterTextSplitter(maxLen, 0)
	chunks, err := ts.SplitText(text)
	if err == nil && len(chunks) > 0 {
		head := strings.TrimSpace(chunks[0])
		if head != "" && len([]rune(head)) <= maxLen {
			return head
		}
	}

	// No usable boundary within the budget, cut at the limit.
	return string(runes[:maxLen])
}
