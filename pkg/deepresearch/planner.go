package deepresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LLMPlanner plans search queries with a language model.
type LLMPlanner struct {
	Model llms.Model
}

func NewLLMPlanner(model llms.Model) *LLMPlanner {
	return &LLMPlanner{Model: model}
}

const plannerSystemPrompt = `You are an expert research planner.
Given a research topic, generate a list of distinct search queries to investigate it.
Each query must target a different aspect of the topic and carry a short research goal
describing what the query is meant to uncover and how to advance the research once
results are in.`

func plannerSchema(numQueries int) string {
	return fmt.Sprintf(`Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "query": {"type": "string", "description": "The search query"},
          "researchGoal": {"type": "string", "description": "The goal this query serves and possible next directions"}
        },
        "required": ["query", "researchGoal"]
      },
      "description": "List of at most %d search queries"
    }
  },
  "required": ["queries"]
}`, numQueries)
}

// Plan generates up to numQueries queries. Prior learnings steer the model
// away from ground already covered.
func (p *LLMPlanner) Plan(ctx context.Context, query string, numQueries int, priorLearnings []string) ([]Query, error) {
	if numQueries <= 0 {
		return nil, nil
	}

	var input strings.Builder
	fmt.Fprintf(&input, "Topic: %s\nGenerate at most %d queries.", query, numQueries)
	if len(priorLearnings) > 0 {
		input.WriteString("\n\nLearnings from prior research, use them to generate more specific queries:\n")
		for _, l := range priorLearnings {
			input.WriteString("- ")
			input.WriteString(l)
			input.WriteString("\n")
		}
	}

	type planResponse struct {
		Queries []Query `json:"queries"`
	}
	var planResp planResponse

	_, err := generateJSON(ctx, p.Model, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, plannerSystemPrompt+"\n\n# Response Format: \n\n"+plannerSchema(numQueries)),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, func(content string) error {
		planResp = planResponse{}
		if err := json.Unmarshal([]byte(content), &planResp); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Op: "plan", Err: err}
	}

	queries := make([]Query, 0, len(planResp.Queries))
	for _, q := range planResp.Queries {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		queries = append(queries, GoalQuery(strings.TrimSpace(q.Text), strings.TrimSpace(q.ResearchGoal)))
		if len(queries) == numQueries {
			break
		}
	}
	return queries, nil
}
