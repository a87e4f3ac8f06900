package splitter

import (
	"strings"
	"testing"
)

func TestTrim(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
	}{
		{"Short string unchanged", "a short paragraph", 100},
		{"Exact length unchanged", "abcde", 5},
		{"Long single word", strings.Repeat("x", 300), 100},
		{"Paragraph boundary", strings.Repeat("first paragraph. ", 20) + "\n\n" + strings.Repeat("second paragraph. ", 20), 400},
		{"Zero budget", "anything", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(tt.input, tt.maxLen)
			if len([]rune(got)) > tt.maxLen {
				t.Errorf("Trim() returned %d units, budget %d", len([]rune(got)), tt.maxLen)
			}
			if len([]rune(tt.input)) <= tt.maxLen && got != tt.input {
				t.Errorf("Trim() modified a string already within budget")
			}
		})
	}
}

func TestTrimIdempotent(t *testing.T) {
	input := strings.Repeat("some sentence about the topic. ", 50)
	once := Trim(input, 200)
	twice := Trim(once, 200)
	if once != twice {
		t.Errorf("Trim() is not idempotent: %q != %q", once, twice)
	}
}
