package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/deepresearch"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Service struct {
	DB       *database.PostgresDB
	Cfg      *config.Config
	Tracer   deepresearch.Tracer
	Store    *vectorstore.LearningStore
	Embedder *embeddings.GoogleEmbedder
}

func NewService(ctx context.Context, db *database.PostgresDB, cfg *config.Config, tracer deepresearch.Tracer) (*Service, error) {
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if tracer == nil {
		tracer = deepresearch.NoopTracer()
	}

	return &Service{
		DB:       db,
		Cfg:      cfg,
		Tracer:   tracer,
		Store:    vectorstore.NewLearningStore(db.Pool),
		Embedder: embedder,
	}, nil
}

// JobResult is the research outcome attached to a completed job.
type JobResult struct {
	Learnings   []string `json:"learnings"`
	VisitedURLs []string `json:"visitedUrls"`
}

type Job struct {
	ID         uuid.UUID       `json:"jobId"`
	Query      string          `json:"query"`
	Breadth    int             `json:"breadth"`
	Depth      int             `json:"depth"`
	Status     string          `json:"status"`
	Progress   json.RawMessage `json:"progress,omitempty"`
	Result     *JobResult      `json:"result,omitempty"`
	Report     *string         `json:"report,omitempty"`
	ActionPlan json.RawMessage `json:"actionPlan,omitempty"`
	Error      *string         `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type CreateJobRequest struct {
	Query   string `json:"query"`
	Breadth int    `json:"breadth"`
	Depth   int    `json:"depth"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.Breadth <= 0 {
		req.Breadth = s.Cfg.DefaultBreadth
	}
	if req.Depth <= 0 {
		req.Depth = s.Cfg.DefaultDepth
	}

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, query, breadth, depth, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, query, breadth, depth, status, created_at, updated_at
	`

	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, jobID, req.Query, req.Breadth, req.Depth).Scan(
		&job.ID, &job.Query, &job.Breadth, &job.Depth, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	go s.runWorker(job.ID, req.Query, req.Breadth, req.Depth)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, query, breadth, depth, status, progress, learnings, visited_urls, report, action_plan, error, created_at, updated_at
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	var learningsJSON, urlsJSON []byte
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Query, &job.Breadth, &job.Depth, &job.Status, &job.Progress,
		&learningsJSON, &urlsJSON, &job.Report, &job.ActionPlan, &job.Error,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if learningsJSON != nil || urlsJSON != nil {
		result := &JobResult{}
		if learningsJSON != nil {
			_ = json.Unmarshal(learningsJSON, &result.Learnings)
		}
		if urlsJSON != nil {
			_ = json.Unmarshal(urlsJSON, &result.VisitedURLs)
		}
		job.Result = result
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, query, breadth, depth, status, progress, error, created_at, updated_at
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Query, &job.Breadth, &job.Depth, &job.Status, &job.Progress, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// RenderJobLog renders the persisted log rows as plain text for download.
func (s *Service) RenderJobLog(ctx context.Context, jobID uuid.UUID) (string, error) {
	logs, err := s.GetJobLogs(ctx, jobID)
	if err != nil {
		return "", err
	}

	out := ""
	for _, l := range logs {
		out += fmt.Sprintf("%s [%s] %s", l.Timestamp.Format(time.RFC3339), l.Level, l.Message)
		if len(l.Metadata) > 0 && string(l.Metadata) != "{}" {
			out += " " + string(l.Metadata)
		}
		out += "\n"
	}
	return out, nil
}

// newFetcher picks the search backend from the configuration.
func (s *Service) newFetcher() search.Fetcher {
	if s.Cfg.SearchProvider == "arxiv" {
		return search.NewArxivClient()
	}
	return search.NewFirecrawlClient(s.Cfg.FirecrawlURL, s.Cfg.FirecrawlKey)
}

func (s *Service) runWorker(jobID uuid.UUID, query string, breadth, depth int) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	model, err := clients.GoogleAi(ctx, s.Cfg.GoogleApiKey, s.Cfg.ReasoningModel)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init model: %v", err))
		return
	}

	engine := deepresearch.New(
		deepresearch.NewLLMPlanner(model),
		s.newFetcher(),
		deepresearch.NewLLMExtractor(model),
		deepresearch.Settings{
			Concurrency:    s.Cfg.ConcurrencyLimit,
			FetchTimeout:   s.Cfg.FetchTimeout,
			ExtractTimeout: s.Cfg.ExtractTimeout,
			ContextSize:    s.Cfg.ContextSize,
		},
	)
	engine.Logger = dbLogger
	engine.Tracer = s.Tracer

	// Persist progress snapshots so clients polling the job see them
	engine.OnProgress = func(p deepresearch.Progress) {
		progressJSON, err := json.Marshal(p)
		if err != nil {
			dbLogger.Error("Failed to marshal progress", "error", err)
			return
		}

		_, err = s.DB.Pool.Exec(context.Background(),
			"UPDATE research_jobs SET progress = $2, updated_at = NOW() WHERE id = $1",
			jobID, progressJSON)
		if err != nil {
			dbLogger.Error("Failed to save progress to DB", "error", err)
		}
	}

	result, err := engine.Run(ctx, query, breadth, depth, nil, nil)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	report, err := deepresearch.WriteFinalReport(ctx, model, result)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Report generation failed: %v", err))
		return
	}

	var actionPlanJSON []byte
	plan, err := deepresearch.WriteActionPlan(ctx, model, result)
	if err != nil {
		// The report alone is still a useful outcome
		dbLogger.Error("Action plan generation failed", "error", err)
	} else {
		actionPlanJSON, _ = json.Marshal(plan)
	}

	learningsJSON, _ := json.Marshal(result.Learnings)
	urlsJSON, _ := json.Marshal(result.VisitedURLs)

	_, err = s.DB.Pool.Exec(ctx,
		`UPDATE research_jobs
		 SET status = 'completed', learnings = $2, visited_urls = $3, report = $4, action_plan = $5, updated_at = NOW()
		 WHERE id = $1`,
		jobID, learningsJSON, urlsJSON, report, actionPlanJSON)
	if err != nil {
		dbLogger.Error("Failed to save final result to DB", "error", err)
	}

	// Index learnings for chat and MCP retrieval; failures don't affect the job
	s.indexLearnings(ctx, dbLogger, jobID, query, result.Learnings)
}

func (s *Service) indexLearnings(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, query string, learnings []string) {
	if len(learnings) == 0 {
		return
	}

	vectors, err := s.Embedder.EmbedTexts(ctx, learnings)
	if err != nil {
		logger.Error("Failed to embed learnings", "error", err)
		return
	}

	docs := make([]vectorstore.Learning, len(learnings))
	for i, l := range learnings {
		docs[i] = vectorstore.Learning{
			Content:   l,
			Metadata:  map[string]interface{}{"query": query},
			Embedding: vectors[i],
		}
	}

	if err := s.Store.AddLearnings(ctx, jobID.String(), docs); err != nil {
		logger.Error("Failed to index learnings", "error", err)
		return
	}
	logger.Info("Indexed learnings", "count", len(docs))
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1", jobID, reason)
}
