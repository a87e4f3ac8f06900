package deepresearch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
)

// Settings are the engine tunables. None of them are correctness-critical;
// the defaults match the recommended values.
type Settings struct {
	// Concurrency bounds in-flight branches per fan-out level.
	Concurrency int
	// FetchTimeout bounds each individual search call.
	FetchTimeout time.Duration
	// ExtractTimeout bounds each learning-extraction call.
	ExtractTimeout time.Duration
	// SearchLimit is the number of results requested per search call.
	SearchLimit int
	// ContextSize caps the size of each content item passed to the extractor.
	ContextSize int
}

func DefaultSettings() Settings {
	return Settings{
		Concurrency:    3,
		FetchTimeout:   15 * time.Second,
		ExtractTimeout: 60 * time.Second,
		SearchLimit:    5,
		ContextSize:    25000,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = d.FetchTimeout
	}
	if s.ExtractTimeout <= 0 {
		s.ExtractTimeout = d.ExtractTimeout
	}
	if s.SearchLimit <= 0 {
		s.SearchLimit = d.SearchLimit
	}
	if s.ContextSize <= 0 {
		s.ContextSize = d.ContextSize
	}
	return s
}

// Engine drives the recursive breadth/depth research expansion. It depends
// only on the narrow collaborator interfaces; construct one per process and
// share it across invocations — per-invocation state lives on the stack.
type Engine struct {
	Planner   Planner
	Fetcher   search.Fetcher
	Extractor Extractor

	// Logger, OnProgress and Tracer may be replaced after construction,
	// before the first Run call.
	Logger     *slog.Logger
	OnProgress ProgressFunc
	Tracer     Tracer

	settings Settings
}

func New(planner Planner, fetcher search.Fetcher, extractor Extractor, settings Settings) *Engine {
	return &Engine{
		Planner:   planner,
		Fetcher:   fetcher,
		Extractor: extractor,
		Logger:    slog.Default(),
		Tracer:    NoopTracer(),
		settings:  settings.withDefaults(),
	}
}

// Run executes one full research invocation. It returns the union of all
// learnings and URLs discovered across the recursive expansion, including
// everything passed in via learnings/visitedURLs. External-call failures
// degrade to empty contributions; Run fails only on contract errors.
func (e *Engine) Run(ctx context.Context, query string, breadth, depth int, learnings, visitedURLs []string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if breadth < 0 {
		return nil, fmt.Errorf("breadth must not be negative, got %d", breadth)
	}
	if depth < 0 {
		return nil, fmt.Errorf("depth must not be negative, got %d", depth)
	}

	tracker := newProgressTracker(depth, breadth, e.OnProgress)

	ctx, span := e.tracer().StartSpan(ctx, "research")
	defer span.End()
	span.SetString("research.query", query)
	span.SetInt("research.breadth", breadth)
	span.SetInt("research.depth", depth)

	accLearnings, accURLs, err := e.research(ctx, PlainQuery(query), breadth, depth, newStringSet(learnings...), newStringSet(visitedURLs...), tracker)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetInt("research.learnings", accLearnings.Len())
	span.SetInt("research.urls", accURLs.Len())

	return &Result{
		Query:       query,
		Learnings:   accLearnings.Values(),
		VisitedURLs: accURLs.Values(),
	}, nil
}

// research runs one fan-out level: plan sub-queries, process each under the
// concurrency limit, and union the branch results.
func (e *Engine) research(ctx context.Context, q Query, breadth, depth int, learnings, visitedURLs *stringSet, tracker *progressTracker) (*stringSet, *stringSet, error) {
	if breadth <= 0 {
		return learnings, visitedURLs, nil
	}

	ctx, span := e.tracer().StartSpan(ctx, "research.level")
	defer span.End()
	span.SetInt("research.level.breadth", breadth)
	span.SetInt("research.level.depth", depth)

	queries, err := e.Planner.Plan(ctx, q.Text, breadth, learnings.Values())
	if err != nil {
		e.logger().Warn("query planning failed, terminating branch", "query", q.Text, "error", err)
		span.RecordError(err)
		return learnings, visitedURLs, nil
	}
	if len(queries) > breadth {
		queries = queries[:breadth]
	}
	if len(queries) == 0 {
		e.logger().Info("planner returned no queries", "query", q.Text)
		return learnings, visitedURLs, nil
	}

	tracker.AddPlanned(len(queries))
	e.logger().Info("planned sub-queries", "count", len(queries), "depth", depth, "breadth", breadth)

	branchLearnings := make([]*stringSet, len(queries))
	branchURLs := make([]*stringSet, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Concurrency)
	for i, sq := range queries {
		g.Go(func() error {
			bl, bu := e.branch(gctx, sq, breadth, depth, learnings.Clone(), visitedURLs.Clone(), tracker)
			branchLearnings[i] = bl
			branchURLs[i] = bu
			return nil
		})
	}
	// Branches never return errors; external failures degrade to empty
	// contributions inside branch. Only a programmer error can surface here.
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	mergedLearnings := learnings.Clone()
	mergedURLs := visitedURLs.Clone()
	for i := range queries {
		mergedLearnings.Union(branchLearnings[i])
		mergedURLs.Union(branchURLs[i])
	}
	return mergedLearnings, mergedURLs, nil
}

// branch processes one sub-query: fetch, extract, then recurse with the
// follow-up questions or terminate. Fetch and extract failures contribute
// nothing but never abort siblings.
func (e *Engine) branch(ctx context.Context, sq Query, breadth, depth int, learnings, visitedURLs *stringSet, tracker *progressTracker) (*stringSet, *stringSet) {
	tracker.StartQuery(sq.Goal(), depth, breadth)

	ctx, span := e.tracer().StartSpan(ctx, "research.branch")
	defer span.End()
	span.SetString("research.branch.query", sq.Text)

	fetchCtx, cancel := context.WithTimeout(ctx, e.settings.FetchTimeout)
	items, err := e.Fetcher.Search(fetchCtx, sq.Text, e.settings.SearchLimit)
	cancel()
	if err != nil {
		if search.IsTimeout(err) {
			e.logger().Warn("search timed out", "query", sq.Text, "timeout", e.settings.FetchTimeout)
		} else {
			e.logger().Warn("search failed", "query", sq.Text, "error", err)
		}
		span.RecordError(err)
		tracker.CompleteQuery()
		return learnings, visitedURLs
	}

	newURLs := newStringSet()
	contents := make([]string, 0, len(items))
	for _, item := range items {
		if item.URL != "" {
			newURLs.Add(item.URL)
		}
		if text := strings.TrimSpace(item.Content); text != "" {
			contents = append(contents, splitter.Trim(text, e.settings.ContextSize))
		}
	}
	span.SetInt("research.branch.results", len(items))

	if len(contents) == 0 {
		e.logger().Info("no usable content for query", "query", sq.Text)
		visitedURLs.Union(newURLs)
		tracker.CompleteQuery()
		return learnings, visitedURLs
	}

	extractCtx, cancel := context.WithTimeout(ctx, e.settings.ExtractTimeout)
	extraction, err := e.Extractor.Extract(extractCtx, sq.Text, contents, breadth, breadth)
	cancel()
	if err != nil {
		e.logger().Warn("learning extraction failed", "query", sq.Text, "error", err)
		span.RecordError(err)
		tracker.CompleteQuery()
		return learnings, visitedURLs
	}

	learnings.AddAll(extraction.Learnings)
	visitedURLs.Union(newURLs)
	span.SetInt("research.branch.learnings", len(extraction.Learnings))

	e.logger().Info("extracted learnings",
		"query", sq.Text,
		"learnings", len(extraction.Learnings),
		"followUps", len(extraction.FollowUpQuestions))

	tracker.CompleteQuery()

	if depth-1 > 0 && len(extraction.FollowUpQuestions) > 0 {
		next := nextQuery(sq.Goal(), extraction.FollowUpQuestions)
		nextBreadth := (breadth + 1) / 2
		e.logger().Info("researching deeper", "depth", depth-1, "breadth", nextBreadth)
		deeper, deeperURLs, err := e.research(ctx, PlainQuery(next), nextBreadth, depth-1, learnings, visitedURLs, tracker)
		if err != nil {
			// Programmer errors surface through Run's top-level fan-out; a
			// nested level reports the same way by giving up its contribution.
			e.logger().Error("nested research level failed", "error", err)
			span.RecordError(err)
			return learnings, visitedURLs
		}
		return deeper, deeperURLs
	}

	return learnings, visitedURLs
}

// nextQuery seeds the next recursion level. The prior research goal is kept
// verbatim so the planner retains topical continuity.
func nextQuery(goal string, followUps []string) string {
	var b strings.Builder
	b.WriteString("Previous research goal: ")
	b.WriteString(goal)
	b.WriteString("\nFollow-up research directions:\n")
	for _, q := range followUps {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) tracer() Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return NoopTracer()
}
