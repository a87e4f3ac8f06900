package deepresearch

import (
	"context"
	"fmt"
)

// Query is a planned search query. The research goal is resolved once at
// creation; Goal() never needs to inspect the shape of the value again.
type Query struct {
	Text         string `json:"query"`
	ResearchGoal string `json:"researchGoal,omitempty"`
}

// PlainQuery builds a query whose goal is the query text itself.
func PlainQuery(text string) Query {
	return Query{Text: text}
}

// GoalQuery builds a query carrying a separate research goal.
func GoalQuery(text, goal string) Query {
	return Query{Text: text, ResearchGoal: goal}
}

// Goal returns the research goal, falling back to the query text.
func (q Query) Goal() string {
	if q.ResearchGoal != "" {
		return q.ResearchGoal
	}
	return q.Text
}

// Progress is a snapshot of the state of one research invocation tree.
// CompletedQueries never decreases and never exceeds TotalQueries.
type Progress struct {
	CurrentDepth     int    `json:"currentDepth"`
	TotalDepth       int    `json:"totalDepth"`
	CurrentBreadth   int    `json:"currentBreadth"`
	TotalBreadth     int    `json:"totalBreadth"`
	TotalQueries     int    `json:"totalQueries"`
	CompletedQueries int    `json:"completedQueries"`
	CurrentQuery     string `json:"currentQuery,omitempty"`
}

// ProgressFunc receives progress snapshots. It runs inline on the
// orchestration path and must not block.
type ProgressFunc func(Progress)

// Result is the union of everything discovered across one research tree,
// including the accumulators the caller passed in. Order is first-seen.
type Result struct {
	Query       string   `json:"query"`
	Learnings   []string `json:"learnings"`
	VisitedURLs []string `json:"visitedUrls"`
}

// Extraction is the output of one learning-extraction call.
type Extraction struct {
	Learnings         []string `json:"learnings"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

// Planner produces up to numQueries search queries for a topic, optionally
// steered by prior learnings. Returns a *GenerationError on unparseable
// model output.
type Planner interface {
	Plan(ctx context.Context, query string, numQueries int, priorLearnings []string) ([]Query, error)
}

// Extractor condenses fetched contents into learnings and follow-up
// questions. Returns a *GenerationError on unparseable model output.
type Extractor interface {
	Extract(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error)
}

// GenerationError indicates that a language-model call produced output that
// could not be parsed against the expected schema.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Span is an in-flight trace span. Implementations are best-effort; calls
// never influence control flow.
type Span interface {
	SetString(key, value string)
	SetInt(key string, value int)
	RecordError(err error)
	End()
}

// Tracer creates child spans. The engine opens one span per top-level
// invocation and one child span per recursion level.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) SetString(key, value string) {}
func (noopSpan) SetInt(key string, value int) {}
func (noopSpan) RecordError(err error)        {}
func (noopSpan) End()                         {}

// NoopTracer returns a tracer whose spans do nothing.
func NoopTracer() Tracer { return noopTracer{} }
