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

const pipelineJobColumns = `id, kind, payload, status, attempts, error, created_at, available_at, claimed_at, processed_at`

// PipelineJobRepository is the Postgres-backed job queue
type PipelineJobRepository struct {
	db dbtx
}

func NewPipelineJobRepository(pool *pgxpool.Pool) *PipelineJobRepository {
	return &PipelineJobRepository{db: pool}
}

func NewPipelineJobRepositoryWithTx(tx dbtx) *PipelineJobRepository {
	return &PipelineJobRepository{db: tx}
}

func (r *PipelineJobRepository) Enqueue(ctx context.Context, job *domain.QueuedJob) error {
	if err := domain.ValidateQueuedJob(job); err != nil {
		return err
	}
	kind, payload, err := domain.EncodeJob(job.Job)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO pipeline_jobs (id, kind, payload, status, attempts, created_at, available_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, kind, payload, job.Status, job.Attempts, job.CreatedAt, job.AvailableAt,
	)
	return err
}

func (r *PipelineJobRepository) GetByID(ctx context.Context, id string) (*domain.QueuedJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+pipelineJobColumns+` FROM pipeline_jobs WHERE id = $1`,
		id,
	)
	job, err := scanQueuedJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound.Wrap(fmt.Errorf("job %s", id))
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit due jobs to processing. Jobs left in
// processing for longer than staleAfter are claimed again and their attempt
// is counted.
func (r *PipelineJobRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*domain.QueuedJob, error) {
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC()

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM pipeline_jobs
			 WHERE (status = $1 AND available_at <= $3)
			    OR (status = $2 AND claimed_at < $4)
			 ORDER BY available_at ASC, created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $5
		 )
		 UPDATE pipeline_jobs
		 SET attempts = pipeline_jobs.attempts + CASE WHEN pipeline_jobs.status = $2 THEN 1 ELSE 0 END,
		     status = $2,
		     claimed_at = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE pipeline_jobs.id = cte.id
		 RETURNING pipeline_jobs.id, pipeline_jobs.kind, pipeline_jobs.payload, pipeline_jobs.status,
		           pipeline_jobs.attempts, pipeline_jobs.error, pipeline_jobs.created_at,
		           pipeline_jobs.available_at, pipeline_jobs.claimed_at, pipeline_jobs.processed_at`,
		domain.JobStatusPending, domain.JobStatusProcessing, now, now.Add(-staleAfter), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.QueuedJob
	for rows.Next() {
		job, err := scanQueuedJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Complete marks a job as done
func (r *PipelineJobRepository) Complete(ctx context.Context, id string) error {
	return r.update(ctx, id,
		`UPDATE pipeline_jobs SET status = $1, error = NULL, processed_at = $2 WHERE id = $3`,
		domain.JobStatusCompleted, time.Now().UTC(), id,
	)
}

// Fail marks a job as permanently failed and counts the attempt
func (r *PipelineJobRepository) Fail(ctx context.Context, id string, errMsg string) error {
	return r.update(ctx, id,
		`UPDATE pipeline_jobs
		 SET status = $1, attempts = attempts + 1, error = $2, processed_at = $3
		 WHERE id = $4`,
		domain.JobStatusFailed, nullableString(errMsg), time.Now().UTC(), id,
	)
}

// Retry returns a job to pending, counts the attempt and delays it until availableAt
func (r *PipelineJobRepository) Retry(ctx context.Context, id string, errMsg string, availableAt time.Time) error {
	return r.update(ctx, id,
		`UPDATE pipeline_jobs
		 SET status = $1, attempts = attempts + 1, error = $2, available_at = $3, claimed_at = NULL
		 WHERE id = $4`,
		domain.JobStatusPending, nullableString(errMsg), availableAt.UTC(), id,
	)
}

func (r *PipelineJobRepository) update(ctx context.Context, id string, sql string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound.Wrap(fmt.Errorf("job %s", id))
	}
	return nil
}

// scanQueuedJob decodes a row. An undecodable payload yields a job with a nil
// Job and the decode error in Error, so the dispatcher can fail it.
func scanQueuedJob(row pgx.Row) (*domain.QueuedJob, error) {
	var job domain.QueuedJob
	var kind domain.JobKind
	var payload []byte
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &kind, &payload, &job.Status, &job.Attempts, &errMsg,
		&job.CreatedAt, &job.AvailableAt, &job.ClaimedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	job.Error = errMsg.String

	decoded, err := domain.DecodeJob(kind, payload)
	if err != nil {
		job.Error = err.Error()
	} else {
		job.Job = decoded
	}
	return &job, nil
}
