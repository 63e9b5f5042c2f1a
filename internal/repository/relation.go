package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

type RelationRepository struct {
	db dbtx
}

func NewRelationRepository(pool *pgxpool.Pool) *RelationRepository {
	return &RelationRepository{db: pool}
}

// Create inserts a relation. An existing pair is a conflict and is never overwritten.
func (r *RelationRepository) Create(ctx context.Context, rel *domain.Relation) error {
	now := time.Now().UTC()
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	rel.UpdatedAt = rel.CreatedAt

	err := r.db.QueryRow(ctx,
		`INSERT INTO relations
			(origin_page_id, related_page_id, similarity_score, relation_type, mention_text, explanation, is_embedded, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		rel.OriginPageID, rel.RelatedPageID, rel.SimilarityScore, rel.RelationType,
		rel.MentionText, nullableString(rel.Explanation), rel.IsEmbedded, rel.CreatedAt, rel.UpdatedAt,
	).Scan(&rel.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRelationAlreadyExists.Wrap(fmt.Errorf("%d -> %d", rel.OriginPageID, rel.RelatedPageID))
		}
		return err
	}
	return nil
}

func (r *RelationRepository) GetByID(ctx context.Context, id int64) (*domain.Relation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, origin_page_id, related_page_id, similarity_score, relation_type,
		        mention_text, explanation, is_embedded, created_at, updated_at
		 FROM relations WHERE id = $1`,
		id,
	)
	rel, err := scanRelation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRelationNotFound
		}
		return nil, err
	}
	return rel, nil
}

func (r *RelationRepository) ListByOrigin(ctx context.Context, originPageID int64) ([]*domain.Relation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, origin_page_id, related_page_id, similarity_score, relation_type,
		        mention_text, explanation, is_embedded, created_at, updated_at
		 FROM relations WHERE origin_page_id = $1
		 ORDER BY id ASC`,
		originPageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*domain.Relation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func scanRelation(row pgx.Row) (*domain.Relation, error) {
	var rel domain.Relation
	var explanation pgtype.Text
	if err := row.Scan(&rel.ID, &rel.OriginPageID, &rel.RelatedPageID, &rel.SimilarityScore, &rel.RelationType,
		&rel.MentionText, &explanation, &rel.IsEmbedded, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return nil, err
	}
	rel.Explanation = explanation.String
	return &rel, nil
}
