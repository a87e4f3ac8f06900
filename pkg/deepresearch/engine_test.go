package deepresearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikeboe/deep-research/pkg/search"
)

type plannerFunc func(ctx context.Context, query string, numQueries int, priorLearnings []string) ([]Query, error)

func (f plannerFunc) Plan(ctx context.Context, query string, numQueries int, priorLearnings []string) ([]Query, error) {
	return f(ctx, query, numQueries, priorLearnings)
}

type fetcherFunc func(ctx context.Context, query string, limit int) ([]search.Item, error)

func (f fetcherFunc) Search(ctx context.Context, query string, limit int) ([]search.Item, error) {
	return f(ctx, query, limit)
}

type extractorFunc func(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error)

func (f extractorFunc) Extract(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error) {
	return f(ctx, query, contents, numLearnings, numFollowUps)
}

// calls records collaborator invocations across concurrent branches.
type calls struct {
	mu       sync.Mutex
	breadths []int
	queries  []string
}

func (c *calls) record(breadth int, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breadths = append(c.breadths, breadth)
	c.queries = append(c.queries, query)
}

func fixedPlanner(c *calls) plannerFunc {
	return func(ctx context.Context, query string, numQueries int, prior []string) ([]Query, error) {
		c.record(numQueries, query)
		queries := make([]Query, numQueries)
		for i := range queries {
			queries[i] = GoalQuery(fmt.Sprintf("%s sub%d", query, i), fmt.Sprintf("goal for %s sub%d", query, i))
		}
		return queries, nil
	}
}

func fixedFetcher() fetcherFunc {
	return func(ctx context.Context, query string, limit int) ([]search.Item, error) {
		return []search.Item{
			{URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Content: "content about " + query},
		}, nil
	}
}

func fixedExtractor(followUps bool) extractorFunc {
	return func(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error) {
		ext := Extraction{Learnings: []string{"learning from " + query}}
		if followUps {
			ext.FollowUpQuestions = []string{"follow-up on " + query}
		}
		return ext, nil
	}
}

func newTestEngine(p Planner, f search.Fetcher, x Extractor) *Engine {
	e := New(p, f, x, Settings{Concurrency: 3, FetchTimeout: time.Second, ExtractTimeout: time.Second})
	return e
}

func TestRunSinglePass(t *testing.T) {
	c := &calls{}
	e := newTestEngine(fixedPlanner(c), fixedFetcher(), fixedExtractor(true))

	result, err := e.Run(context.Background(), "test topic", 2, 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// depth=0: one planning pass, no recursion even though follow-ups exist.
	if len(c.breadths) != 1 {
		t.Fatalf("planner called %d times, want 1", len(c.breadths))
	}
	if len(result.Learnings) != 2 {
		t.Errorf("got %d learnings, want 2 (one per branch)", len(result.Learnings))
	}
	if len(result.VisitedURLs) != 2 {
		t.Errorf("got %d urls, want 2", len(result.VisitedURLs))
	}
}

func TestRunBreadthHalving(t *testing.T) {
	c := &calls{}
	e := newTestEngine(fixedPlanner(c), fixedFetcher(), fixedExtractor(true))

	_, err := e.Run(context.Background(), "test topic", 4, 2, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Level 0 plans with breadth 4; each of the 4 branches recurses once
	// with breadth ceil(4/2)=2; depth is then exhausted.
	if len(c.breadths) != 5 {
		t.Fatalf("planner called %d times, want 5", len(c.breadths))
	}
	if c.breadths[0] != 4 {
		t.Errorf("first plan breadth = %d, want 4", c.breadths[0])
	}
	for _, b := range c.breadths[1:] {
		if b != 2 {
			t.Errorf("nested plan breadth = %d, want 2", b)
		}
	}
}

func TestRunOddBreadthHalvesToCeil(t *testing.T) {
	c := &calls{}
	e := newTestEngine(fixedPlanner(c), fixedFetcher(), fixedExtractor(true))

	if _, err := e.Run(context.Background(), "topic", 3, 2, nil, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, b := range c.breadths[1:] {
		if b != 2 {
			t.Errorf("nested plan breadth = %d, want ceil(3/2)=2", b)
		}
	}
}

func TestRunAllFetchesTimeout(t *testing.T) {
	c := &calls{}
	var snapshots []Progress
	var mu sync.Mutex

	e := newTestEngine(fixedPlanner(c),
		fetcherFunc(func(ctx context.Context, query string, limit int) ([]search.Item, error) {
			return nil, &search.FetchError{Query: query, Err: context.DeadlineExceeded}
		}),
		fixedExtractor(true))
	e.OnProgress = func(p Progress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	}

	result, err := e.Run(context.Background(), "test topic", 3, 2, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want graceful degradation", err)
	}
	if len(result.Learnings) != 0 || len(result.VisitedURLs) != 0 {
		t.Errorf("result = %d learnings / %d urls, want empty", len(result.Learnings), len(result.VisitedURLs))
	}

	final := snapshots[len(snapshots)-1]
	if final.CompletedQueries != final.TotalQueries {
		t.Errorf("completedQueries = %d, totalQueries = %d, want equal", final.CompletedQueries, final.TotalQueries)
	}
	if final.TotalQueries != 3 {
		t.Errorf("totalQueries = %d, want 3 (no recursion after failed fetches)", final.TotalQueries)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	fetchCalled := false
	e := newTestEngine(
		plannerFunc(func(ctx context.Context, query string, n int, prior []string) ([]Query, error) {
			return nil, nil
		}),
		fetcherFunc(func(ctx context.Context, query string, limit int) ([]search.Item, error) {
			fetchCalled = true
			return nil, nil
		}),
		fixedExtractor(false))

	result, err := e.Run(context.Background(), "test topic", 3, 2, []string{"prior"}, []string{"https://prior.example"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fetchCalled {
		t.Error("fetcher called despite empty plan")
	}
	if len(result.Learnings) != 1 || result.Learnings[0] != "prior" {
		t.Errorf("learnings = %v, want the untouched accumulator", result.Learnings)
	}
	if len(result.VisitedURLs) != 1 || result.VisitedURLs[0] != "https://prior.example" {
		t.Errorf("visitedUrls = %v, want the untouched accumulator", result.VisitedURLs)
	}
}

func TestRunFaultIsolation(t *testing.T) {
	c := &calls{}
	e := newTestEngine(fixedPlanner(c),
		fetcherFunc(func(ctx context.Context, query string, limit int) ([]search.Item, error) {
			if strings.HasSuffix(query, "sub1") {
				return nil, &search.FetchError{Query: query, Err: errors.New("boom")}
			}
			return fixedFetcher()(ctx, query, limit)
		}),
		fixedExtractor(false))

	result, err := e.Run(context.Background(), "test topic", 3, 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Learnings) != 2 {
		t.Errorf("got %d learnings, want 2 from the surviving branches", len(result.Learnings))
	}
}

func TestRunExtractorFailureContributesNothing(t *testing.T) {
	e := newTestEngine(fixedPlanner(&calls{}), fixedFetcher(),
		extractorFunc(func(ctx context.Context, query string, contents []string, nl, nf int) (Extraction, error) {
			return Extraction{}, &GenerationError{Op: "extract", Err: errors.New("malformed output")}
		}))

	result, err := e.Run(context.Background(), "test topic", 2, 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Learnings) != 0 {
		t.Errorf("learnings = %v, want none", result.Learnings)
	}
	if len(result.VisitedURLs) != 0 {
		t.Errorf("visitedUrls = %v, want none (failed branch contributes nothing)", result.VisitedURLs)
	}
}

func TestRunAccumulatorSuperset(t *testing.T) {
	e := newTestEngine(fixedPlanner(&calls{}), fixedFetcher(), fixedExtractor(false))

	prior := []string{"known fact", "learning from test topic sub0"}
	result, err := e.Run(context.Background(), "test topic", 2, 0, prior, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := make(map[string]bool, len(result.Learnings))
	for _, l := range result.Learnings {
		if got[l] {
			t.Errorf("duplicate learning %q in result", l)
		}
		got[l] = true
	}
	for _, p := range prior {
		if !got[p] {
			t.Errorf("result missing accumulated learning %q", p)
		}
	}
	if result.Learnings[0] != "known fact" {
		t.Errorf("first-seen order lost: first learning = %q", result.Learnings[0])
	}
}

func TestRunProgressMonotone(t *testing.T) {
	var mu sync.Mutex
	var snapshots []Progress

	e := newTestEngine(fixedPlanner(&calls{}), fixedFetcher(), fixedExtractor(true))
	e.OnProgress = func(p Progress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	}

	if _, err := e.Run(context.Background(), "test topic", 4, 2, nil, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	prev := 0
	for i, s := range snapshots {
		if s.CompletedQueries < prev {
			t.Fatalf("snapshot %d: completedQueries decreased %d -> %d", i, prev, s.CompletedQueries)
		}
		if s.CompletedQueries > s.TotalQueries {
			t.Fatalf("snapshot %d: completedQueries %d > totalQueries %d", i, s.CompletedQueries, s.TotalQueries)
		}
		prev = s.CompletedQueries
	}
	final := snapshots[len(snapshots)-1]
	if final.CompletedQueries != final.TotalQueries {
		t.Errorf("final progress %d/%d, want all queries completed", final.CompletedQueries, final.TotalQueries)
	}
}

func TestRunInvalidArgs(t *testing.T) {
	e := newTestEngine(fixedPlanner(&calls{}), fixedFetcher(), fixedExtractor(false))

	if _, err := e.Run(context.Background(), "", 2, 1, nil, nil); err == nil {
		t.Error("Run() with empty query: want error")
	}
	if _, err := e.Run(context.Background(), "topic", -1, 1, nil, nil); err == nil {
		t.Error("Run() with negative breadth: want error")
	}
	if _, err := e.Run(context.Background(), "topic", 2, -1, nil, nil); err == nil {
		t.Error("Run() with negative depth: want error")
	}
}

func TestRunZeroBreadth(t *testing.T) {
	plannerCalled := false
	e := newTestEngine(
		plannerFunc(func(ctx context.Context, query string, n int, prior []string) ([]Query, error) {
			plannerCalled = true
			return nil, nil
		}),
		fixedFetcher(), fixedExtractor(false))

	result, err := e.Run(context.Background(), "topic", 0, 1, []string{"prior"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if plannerCalled {
		t.Error("planner called with zero breadth")
	}
	if len(result.Learnings) != 1 {
		t.Errorf("learnings = %v, want the untouched accumulator", result.Learnings)
	}
}

func TestRunPlannerOverdelivery(t *testing.T) {
	e := newTestEngine(
		plannerFunc(func(ctx context.Context, query string, n int, prior []string) ([]Query, error) {
			queries := make([]Query, n+3)
			for i := range queries {
				queries[i] = PlainQuery(fmt.Sprintf("q%d", i))
			}
			return queries, nil
		}),
		fixedFetcher(), fixedExtractor(false))

	result, err := e.Run(context.Background(), "topic", 2, 0, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Learnings) > 2 {
		t.Errorf("got %d learnings, want at most breadth=2 branches", len(result.Learnings))
	}
}

func TestNextQuery(t *testing.T) {
	got := nextQuery("understand market size", []string{"what about europe?", "who are the competitors?"})

	if !strings.Contains(got, "Previous research goal: understand market size") {
		t.Errorf("nextQuery() dropped the research goal: %q", got)
	}
	if !strings.Contains(got, "- what about europe?") || !strings.Contains(got, "- who are the competitors?") {
		t.Errorf("nextQuery() missing bulleted follow-ups: %q", got)
	}
}

func TestQueryGoal(t *testing.T) {
	if g := PlainQuery("just text").Goal(); g != "just text" {
		t.Errorf("PlainQuery goal = %q, want the text", g)
	}
	if g := GoalQuery("text", "the goal").Goal(); g != "the goal" {
		t.Errorf("GoalQuery goal = %q, want %q", g, "the goal")
	}
}
