package deepresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ActionItem is one step of an action plan.
type ActionItem struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
	Priority  int    `json:"priority"`
}

// ActionPlan is a structured plan derived from the research result.
type ActionPlan struct {
	Title   string       `json:"title"`
	Summary string       `json:"summary"`
	Items   []ActionItem `json:"items"`
	Sources []string     `json:"sources"`
}

// WriteFinalReport turns a research result into a Markdown report. A Sources
// section listing the visited URLs is appended verbatim.
func WriteFinalReport(ctx context.Context, model llms.Model, result *Result) (string, error) {
	var learnings strings.Builder
	for _, l := range result.Learnings {
		learnings.WriteString("<learning>\n")
		learnings.WriteString(l)
		learnings.WriteString("\n</learning>\n")
	}

	prompt := fmt.Sprintf(`Write a detailed research report on the following topic, using the learnings from research.
Aim for 3 or more pages of Markdown, include ALL the learnings.

<topic>%s</topic>

<learnings>
%s</learnings>`, result.Query, learnings.String())

	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("report generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Op: "report", Err: fmt.Errorf("llm returned no choices")}
	}

	report := resp.Choices[0].Content
	if len(result.VisitedURLs) > 0 {
		var sources strings.Builder
		sources.WriteString("\n\n## Sources\n\n")
		for _, u := range result.VisitedURLs {
			sources.WriteString("- ")
			sources.WriteString(u)
			sources.WriteString("\n")
		}
		report += sources.String()
	}
	return report, nil
}

const actionPlanSchema = `Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "summary": {"type": "string", "description": "Short summary of what the plan achieves"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "action": {"type": "string"},
          "rationale": {"type": "string"},
          "priority": {"type": "integer", "description": "1 is highest"}
        },
        "required": ["action", "rationale", "priority"]
      }
    }
  },
  "required": ["title", "summary", "items"]
}`

// WriteActionPlan turns a research result into a prioritized action plan.
func WriteActionPlan(ctx context.Context, model llms.Model, result *Result) (*ActionPlan, error) {
	var learnings strings.Builder
	for _, l := range result.Learnings {
		learnings.WriteString("- ")
		learnings.WriteString(l)
		learnings.WriteString("\n")
	}

	input := fmt.Sprintf(`Based on the research topic and learnings below, produce a concrete, prioritized action plan.

Topic: %s

Learnings:
%s`, result.Query, learnings.String())

	var plan ActionPlan
	_, err := generateJSON(ctx, model, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a pragmatic strategy consultant.\n\n# Response Format: \n\n"+actionPlanSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, func(content string) error {
		plan = ActionPlan{}
		if err := json.Unmarshal([]byte(content), &plan); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if plan.Title == "" {
			return fmt.Errorf("missing title")
		}
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Op: "action-plan", Err: err}
	}

	plan.Sources = append([]string(nil), result.VisitedURLs...)
	return &plan, nil
}
