package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

// SummaryChars bounds the compiled-content excerpt returned with neighbours
const SummaryChars = 280

// PageEmbeddingRepository stores compiled content and embeddings on the pages table
type PageEmbeddingRepository struct {
	db dbtx
}

func NewPageEmbeddingRepository(pool *pgxpool.Pool) *PageEmbeddingRepository {
	return &PageEmbeddingRepository{db: pool}
}

func NewPageEmbeddingRepositoryWithTx(tx dbtx) *PageEmbeddingRepository {
	return &PageEmbeddingRepository{db: tx}
}

// Save writes compiled content and vector together in one statement
func (r *PageEmbeddingRepository) Save(ctx context.Context, pageID int64, compiledContent string, vector []float32) error {
	if strings.TrimSpace(compiledContent) == "" {
		return domain.ErrEmptyContent
	}
	if len(vector) == 0 {
		return domain.ErrMissingRequiredField.Wrap(fmt.Errorf("embedding vector is empty"))
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE pages SET compiled_content = $1, embedding = $2, updated_at = $3 WHERE id = $4`,
		compiledContent, pgvector.NewVector(vector), time.Now().UTC(), pageID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPageNotFound.Wrap(fmt.Errorf("page %d", pageID))
	}
	return nil
}

// Get returns the stored vector and whether one exists
func (r *PageEmbeddingRepository) Get(ctx context.Context, pageID int64) ([]float32, bool, error) {
	var embedding pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT embedding::text FROM pages WHERE id = $1`,
		pageID,
	).Scan(&embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrPageNotFound.Wrap(fmt.Errorf("page %d", pageID))
		}
		return nil, false, err
	}

	vec, err := parseVector(embedding)
	if err != nil {
		return nil, false, err
	}
	return vec, vec != nil, nil
}

// Nearest ranks pages of the same module by cosine similarity to q.Vector.
// Equal similarities are ordered by ascending page id.
func (r *PageEmbeddingRepository) Nearest(ctx context.Context, q domain.NearestQuery) ([]domain.SimilarPage, error) {
	if err := domain.ValidateNearestQuery(q); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, title, left(compiled_content, $6), similarity
		 FROM (
			 SELECT id, title, compiled_content, 1 - (embedding <=> $1) AS similarity
			 FROM pages
			 WHERE module_id = $2
			   AND id <> $3
			   AND embedding IS NOT NULL
			   AND ($5 = false OR is_published)
		 ) candidates
		 WHERE similarity >= $4
		 ORDER BY similarity DESC, id ASC
		 LIMIT $7`,
		pgvector.NewVector(q.Vector), q.ModuleID, q.ExcludePageID, q.MinSimilarity, q.OnlyPublished, SummaryChars, q.TopK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SimilarPage, 0, q.TopK)
	for rows.Next() {
		var sp domain.SimilarPage
		var summary pgtype.Text
		if err := rows.Scan(&sp.PageID, &sp.Title, &summary, &sp.Similarity); err != nil {
			return nil, err
		}
		sp.Summary = summary.String
		results = append(results, sp)
	}
	return results, rows.Err()
}
