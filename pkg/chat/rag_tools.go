package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

type LearningToolset struct {
	Store    *vectorstore.LearningStore
	Embedder *embeddings.GoogleEmbedder
}

func NewLearningToolset(store *vectorstore.LearningStore, embedder *embeddings.GoogleEmbedder) *LearningToolset {
	return &LearningToolset{
		Store:    store,
		Embedder: embedder,
	}
}

func (t *LearningToolset) Name() string {
	return "learning_tools"
}

func (t *LearningToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchLearningsArgs, SearchLearningsResp](
		functiontool.Config{
			Name:        "search_learnings",
			Description: "Search research learnings using semantic search, optionally scoped to one research job.",
		},
		t.searchLearningsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	findByJobTool, err := functiontool.New[FindJobArgs, FindJobResp](
		functiontool.Config{
			Name:        "find_learnings_by_job",
			Description: "Retrieve all learnings collected by a specific research job.",
		},
		t.findLearningsByJobTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_job tool: %w", err)
	}

	findByMetadataTool, err := functiontool.New[FindMetadataArgs, FindMetadataResp](
		functiontool.Config{
			Name:        "find_learnings_by_metadata",
			Description: "Find learnings using complex logical filters on metadata.",
		},
		t.findLearningsByMetadataTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_metadata tool: %w", err)
	}

	return []tool.Tool{searchTool, findByJobTool, findByMetadataTool}, nil
}

// --- Tool Implementations ---

type SearchLearningsArgs struct {
	Query string `json:"query" description:"The search query"`
	TopK  int    `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	JobID string `json:"jobId,omitempty" description:"Optional research job filter"`
}

type SearchLearningsResp struct {
	Results string `json:"results"`
}

// Wrapper for ADK tool interface
func (t *LearningToolset) searchLearningsTool(ctx tool.Context, args SearchLearningsArgs) (SearchLearningsResp, error) {
	return t.SearchLearnings(ctx, args)
}

// Public method using standard context
func (t *LearningToolset) SearchLearnings(ctx context.Context, args SearchLearningsArgs) (SearchLearningsResp, error) {
	if args.TopK == 0 {
		args.TopK = 5
	}

	slog.Info("Search learnings", "query", args.Query, "topK", args.TopK, "jobId", args.JobID)

	queryEmbedding, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchLearningsResp{}, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := t.Store.SimilaritySearch(ctx, queryEmbedding, args.TopK, args.JobID)
	if err != nil {
		return SearchLearningsResp{}, fmt.Errorf("failed to search: %w", err)
	}

	var formattedResults []string
	for _, result := range results {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[Job]: %s\n[Learning]: %s", result.Learning.JobID, result.Learning.Content))

		for k, v := range result.Learning.Metadata {
			sb.WriteString(fmt.Sprintf("\n[%s]: %v", k, v))
		}

		formattedResults = append(formattedResults, sb.String())
	}

	serialized := strings.Join(formattedResults, "\n\n")
	return SearchLearningsResp{Results: serialized}, nil
}

type FindJobArgs struct {
	JobID string `json:"jobId" description:"The research job id to retrieve learnings for"`
}

type FindJobResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *LearningToolset) findLearningsByJobTool(ctx tool.Context, args FindJobArgs) (FindJobResp, error) {
	return t.FindLearningsByJob(ctx, args)
}

// Public method using standard context
func (t *LearningToolset) FindLearningsByJob(ctx context.Context, args FindJobArgs) (FindJobResp, error) {
	results, err := t.Store.FindByJob(ctx, args.JobID)
	if err != nil {
		return FindJobResp{}, fmt.Errorf("failed to find learnings: %w", err)
	}

	var formattedResults []string
	for _, result := range results {
		formattedResults = append(formattedResults, result.Content)
	}

	serialized := strings.Join(formattedResults, "\n\n")
	return FindJobResp{Content: serialized}, nil
}

type FindMetadataArgs struct {
	Filter map[string]interface{} `json:"filter" description:"JSON filter object with logical operators ($and, $or, $not)"`
}

type FindMetadataResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *LearningToolset) findLearningsByMetadataTool(ctx tool.Context, args FindMetadataArgs) (FindMetadataResp, error) {
	return t.FindLearningsByMetadata(ctx, args)
}

// Public method using standard context
func (t *LearningToolset) FindLearningsByMetadata(ctx context.Context, args FindMetadataArgs) (FindMetadataResp, error) {
	results, err := t.Store.FindByMetadata(ctx, args.Filter)
	if err != nil {
		return FindMetadataResp{}, fmt.Errorf("failed to find learnings: %w", err)
	}

	var formattedResults []string
	for _, result := range results {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[Learning]: %s", result.Content))
		for k, v := range result.Metadata {
			sb.WriteString(fmt.Sprintf("\n[%s]: %v", k, v))
		}
		formattedResults = append(formattedResults, sb.String())
	}

	serialized := strings.Join(formattedResults, "\n\n")
	return FindMetadataResp{Content: serialized}, nil
}
