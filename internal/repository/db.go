package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseVector decodes a vector selected as text; NULL yields nil
func parseVector(t pgtype.Text) ([]float32, error) {
	if !t.Valid {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(t.String); err != nil {
		return nil, fmt.Errorf("failed to parse embedding: %w", err)
	}
	return v.Slice(), nil
}
