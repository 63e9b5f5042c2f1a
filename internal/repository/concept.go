package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

type ConceptRepository struct {
	db dbtx
}

func NewConceptRepository(pool *pgxpool.Pool) *ConceptRepository {
	return &ConceptRepository{db: pool}
}

// Create inserts a concept. A duplicate (page_id, term) leaves the existing row untouched.
func (r *ConceptRepository) Create(ctx context.Context, c *domain.Concept) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO concepts (page_id, term, definition, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		c.PageID, c.Term, c.Definition, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConceptAlreadyExists.Wrap(fmt.Errorf("term %q", c.Term))
		}
		return err
	}
	return nil
}

func (r *ConceptRepository) ListByPage(ctx context.Context, pageID int64) ([]*domain.Concept, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, page_id, term, definition, created_at
		 FROM concepts WHERE page_id = $1
		 ORDER BY id ASC`,
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []*domain.Concept
	for rows.Next() {
		var c domain.Concept
		if err := rows.Scan(&c.ID, &c.PageID, &c.Term, &c.Definition, &c.CreatedAt); err != nil {
			return nil, err
		}
		concepts = append(concepts, &c)
	}
	return concepts, rows.Err()
}
