package deepresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LLMExtractor condenses fetched page contents into learnings with a
// language model.
type LLMExtractor struct {
	Model llms.Model
}

func NewLLMExtractor(model llms.Model) *LLMExtractor {
	return &LLMExtractor{Model: model}
}

const extractorSystemPrompt = `You are an expert research analyst.
Given search result contents for a query, extract concise learnings and propose follow-up questions.
Each learning must be a unique, information-dense, atomic fact. Include entities, metrics,
numbers and dates where the contents mention them. The follow-up questions must point at
aspects the contents leave open.`

func extractorSchema(numLearnings, numFollowUps int) string {
	return fmt.Sprintf(`Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "learnings": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of at most %d learnings"
    },
    "followUpQuestions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "List of at most %d follow-up questions to research the topic further"
    }
  },
  "required": ["learnings", "followUpQuestions"]
}`, numLearnings, numFollowUps)
}

// Extract returns up to numLearnings learnings and numFollowUps follow-up
// questions for the given contents.
func (e *LLMExtractor) Extract(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error) {
	if len(contents) == 0 {
		return Extraction{}, nil
	}

	var input strings.Builder
	fmt.Fprintf(&input, "Query: %s\n\nContents:\n", query)
	for _, c := range contents {
		input.WriteString("<content>\n")
		input.WriteString(c)
		input.WriteString("\n</content>\n")
	}

	var extraction Extraction

	_, err := generateJSON(ctx, e.Model, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, extractorSystemPrompt+"\n\n# Response Format: \n\n"+extractorSchema(numLearnings, numFollowUps)),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, func(content string) error {
		extraction = Extraction{}
		if err := json.Unmarshal([]byte(content), &extraction); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return Extraction{}, &GenerationError{Op: "extract", Err: err}
	}

	if len(extraction.Learnings) > numLearnings {
		extraction.Learnings = extraction.Learnings[:numLearnings]
	}
	if len(extraction.FollowUpQuestions) > numFollowUps {
		extraction.FollowUpQuestions = extraction.FollowUpQuestions[:numFollowUps]
	}
	return extraction, nil
}
