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

type PageRepository struct {
	db dbtx
}

func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{db: pool}
}

func NewPageRepositoryWithTx(tx dbtx) *PageRepository {
	return &PageRepository{db: tx}
}

// GetWithBlocks loads a page and its blocks ordered by order_index
func (r *PageRepository) GetWithBlocks(ctx context.Context, id int64) (*domain.Page, error) {
	var p domain.Page
	var compiled, embedding, threadID pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, module_id, title, compiled_content, embedding::text, has_manual_edits,
		        last_generation_thread_id, concepts_processed, is_published, updated_at
		 FROM pages WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.ModuleID, &p.Title, &compiled, &embedding, &p.HasManualEdits,
		&threadID, &p.ConceptsProcessed, &p.IsPublished, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPageNotFound.Wrap(fmt.Errorf("page %d", id))
		}
		return nil, err
	}
	if compiled.Valid {
		p.CompiledContent = &compiled.String
	}
	if threadID.Valid {
		p.LastGenerationThreadID = threadID.String
	}
	if p.Embedding, err = parseVector(embedding); err != nil {
		return nil, err
	}

	blocks, err := r.listBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Blocks = blocks

	return &p, nil
}

func (r *PageRepository) listBlocks(ctx context.Context, pageID int64) ([]domain.Block, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, page_id, order_index, type, content
		 FROM blocks WHERE page_id = $1
		 ORDER BY order_index ASC, id ASC`,
		pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var b domain.Block
		var typ domain.BlockType
		var raw []byte
		if err := rows.Scan(&b.ID, &b.PageID, &b.OrderIndex, &typ, &raw); err != nil {
			return nil, err
		}
		if b.Content, err = domain.DecodeBlockContent(typ, raw); err != nil {
			return nil, fmt.Errorf("block %d: %w", b.ID, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ReplaceBlocks deletes the page's blocks and inserts contents in order
func (r *PageRepository) ReplaceBlocks(ctx context.Context, pageID int64, contents []domain.BlockContent) ([]domain.Block, error) {
	if err := r.touch(ctx, pageID); err != nil {
		return nil, err
	}

	_, err := r.db.Exec(ctx, `DELETE FROM blocks WHERE page_id = $1`, pageID)
	if err != nil {
		return nil, err
	}

	blocks := make([]domain.Block, 0, len(contents))
	for i, c := range contents {
		typ, raw, err := domain.EncodeBlockContent(c)
		if err != nil {
			return nil, err
		}
		b := domain.Block{PageID: pageID, OrderIndex: i, Content: c}
		err = r.db.QueryRow(ctx,
			`INSERT INTO blocks (page_id, order_index, type, content)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			pageID, i, typ, raw,
		).Scan(&b.ID)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	return blocks, nil
}

// MarkManualEdit flags the page as diverged from its last generation
func (r *PageRepository) MarkManualEdit(ctx context.Context, pageID int64) error {
	return r.exec(ctx, pageID,
		`UPDATE pages SET has_manual_edits = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), pageID,
	)
}

// SaveGeneration stores the thread id of an applied generation and clears the manual edit flag
func (r *PageRepository) SaveGeneration(ctx context.Context, pageID int64, threadID string) error {
	return r.exec(ctx, pageID,
		`UPDATE pages
		 SET last_generation_thread_id = $1, has_manual_edits = false, updated_at = $2
		 WHERE id = $3`,
		nullableString(threadID), time.Now().UTC(), pageID,
	)
}

// MarkConceptsProcessed records a completed concept extraction
func (r *PageRepository) MarkConceptsProcessed(ctx context.Context, pageID int64) error {
	return r.exec(ctx, pageID,
		`UPDATE pages SET concepts_processed = true WHERE id = $1`,
		pageID,
	)
}

func (r *PageRepository) touch(ctx context.Context, pageID int64) error {
	return r.exec(ctx, pageID,
		`UPDATE pages SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), pageID,
	)
}

func (r *PageRepository) exec(ctx context.Context, pageID int64, sql string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPageNotFound.Wrap(fmt.Errorf("page %d", pageID))
	}
	return nil
}

type ModuleRepository struct {
	db dbtx
}

func NewModuleRepository(pool *pgxpool.Pool) *ModuleRepository {
	return &ModuleRepository{db: pool}
}

func (r *ModuleRepository) GetByID(ctx context.Context, id int64) (*domain.Module, error) {
	var m domain.Module
	err := r.db.QueryRow(ctx,
		`SELECT id, title, ai_language, ai_target_audience, ai_target_level
		 FROM modules WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Title, &m.AIConfig.Language, &m.AIConfig.TargetAudience, &m.AIConfig.TargetLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModuleNotFound.Wrap(fmt.Errorf("module %d", id))
		}
		return nil, err
	}
	return &m, nil
}
