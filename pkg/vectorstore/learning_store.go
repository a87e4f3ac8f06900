package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Learning is one indexed research learning with its embedding
type Learning struct {
	ID        string                 `json:"id"`
	JobID     string                 `json:"jobId"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

// LearningStore handles pgvector operations on the research_learnings table
type LearningStore struct {
	pool *pgxpool.Pool
}

// NewLearningStore creates a new learning store
func NewLearningStore(pool *pgxpool.Pool) *LearningStore {
	return &LearningStore{pool: pool}
}

// AddLearnings inserts learnings with embeddings for a research job
func (vs *LearningStore) AddLearnings(ctx context.Context, jobID string, learnings []Learning) error {
	query := `
		INSERT INTO research_learnings (job_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for _, l := range learnings {
		metadataJSON, err := json.Marshal(l.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		embedding := pgvector.NewVector(l.Embedding)
		batch.Queue(query, jobID, l.Content, metadataJSON, embedding)
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range learnings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert learning: %w", err)
		}
	}

	return nil
}

// SimilaritySearchResult represents a search result with score
type SimilaritySearchResult struct {
	Learning Learning
	Score    float64
}

// SimilaritySearch performs a similarity search. An empty jobID searches
// across all jobs.
func (vs *LearningStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, jobID string) ([]SimilaritySearchResult, error) {
	var query string
	var args []interface{}

	embedding := pgvector.NewVector(queryEmbedding)

	if jobID != "" {
		query = `
			SELECT id, job_id, content, metadata, 1 - (embedding <=> $1) as similarity
			FROM research_learnings
			WHERE job_id = $2
			ORDER BY embedding <=> $1
			LIMIT $3
		`
		args = []interface{}{embedding, jobID, topK}
	} else {
		query = `
			SELECT id, job_id, content, metadata, 1 - (embedding <=> $1) as similarity
			FROM research_learnings
			ORDER BY embedding <=> $1
			LIMIT $2
		`
		args = []interface{}{embedding, topK}
	}

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []SimilaritySearchResult
	for rows.Next() {
		var l Learning
		var metadataJSON []byte
		var similarity float64

		if err := rows.Scan(&l.ID, &l.JobID, &l.Content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		results = append(results, SimilaritySearchResult{
			Learning: l,
			Score:    similarity,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// FindByJob retrieves all learnings indexed for a research job
func (vs *LearningStore) FindByJob(ctx context.Context, jobID string) ([]Learning, error) {
	query := `
		SELECT id, job_id, content, metadata
		FROM research_learnings
		WHERE job_id = $1
		ORDER BY created_at
	`

	rows, err := vs.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanLearnings(rows)
}

// FindByMetadata retrieves learnings matching a complex JSON filter.
// Supports logical operators $and, $or, $not within the filter map
func (vs *LearningStore) FindByMetadata(ctx context.Context, filter map[string]interface{}) ([]Learning, error) {
	var args []interface{}
	whereClause, err := vs.buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, job_id, content, metadata
		FROM research_learnings
		WHERE %s
	`, whereClause)

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanLearnings(rows)
}

func scanLearnings(rows pgx.Rows) ([]Learning, error) {
	var learnings []Learning
	for rows.Next() {
		var l Learning
		var metadataJSON []byte

		if err := rows.Scan(&l.ID, &l.JobID, &l.Content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		learnings = append(learnings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return learnings, nil
}

// buildMetadataQuery recursively builds a SQL WHERE clause for list of conditions
func (vs *LearningStore) buildMetadataQuery(filter map[string]interface{}, args *[]interface{}) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	var conditions []string

	for key, value := range filter {
		switch key {
		case "$and", "$or":
			list, ok := value.([]interface{})
			if !ok {
				return "", fmt.Errorf("value for %s must be a list of conditions", key)
			}
			var subConditions []string
			for _, item := range list {
				subMap, ok := item.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("item in %s list must be a JSON object", key)
				}
				subQuery, err := vs.buildMetadataQuery(subMap, args)
				if err != nil {
					return "", err
				}
				subConditions = append(subConditions, "("+subQuery+")")
			}

			if len(subConditions) == 0 {
				continue
			}

			op := " AND "
			if key == "$or" {
				op = " OR "
			}
			conditions = append(conditions, "("+strings.Join(subConditions, op)+")")

		case "$not":
			subMap, ok := value.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("value for $not must be a JSON object")
			}
			subQuery, err := vs.buildMetadataQuery(subMap, args)
			if err != nil {
				return "", err
			}
			conditions = append(conditions, "NOT ("+subQuery+")")

		default:
			// Treat as simple equality match: metadata @> '{"key": value}'
			pair := map[string]interface{}{key: value}
			jsonBytes, err := json.Marshal(pair)
			if err != nil {
				return "", fmt.Errorf("failed to marshal metadata pair: %w", err)
			}
			*args = append(*args, jsonBytes)
			conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}

	return strings.Join(conditions, " AND "), nil
}
