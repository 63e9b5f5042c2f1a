package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/lessonlens/internal/service"
)

// TxRunner runs page edits and their job enqueues in one transaction, so a
// queued job never outlives a rolled back edit.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back on error or panic
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepos{
			pages: NewPageRepositoryWithTx(tx),
			jobs:  NewPipelineJobRepositoryWithTx(tx),
		})
	})
}

type txRepos struct {
	pages *PageRepository
	jobs  *PipelineJobRepository
}

func (r *txRepos) Pages() service.PageRepositoryInterface { return r.pages }

func (r *txRepos) Jobs() service.JobEnqueuer { return r.jobs }
