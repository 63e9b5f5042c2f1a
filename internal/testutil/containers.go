// Package testutil starts the backing services used by integration tests.
package testutil

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cloo-solutions/lessonlens/internal/database"
	"github.com/cloo-solutions/lessonlens/internal/logger"
)

const (
	pgUser     = "lessonlens"
	pgPassword = "lessonlens"
	pgDatabase = "lessonlens"

	S3AccessKey = "rustfsadmin"
	S3SecretKey = "rustfsadmin"
)

// service is a started container plus its mapped address
type service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// Terminate stops and removes the container
func (s *service) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(s.Container)
}

func start(ctx context.Context, t *testing.T, name string, req testcontainers.ContainerRequest) service {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", name, err)
	}

	// Endpoint resolves the first exposed port
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get %s endpoint: %v", name, err)
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		t.Fatalf("unexpected %s endpoint %q: %v", name, endpoint, err)
	}

	return service{Container: container, Host: host, Port: port}
}

// PostgresContainer runs Postgres with the vector extension available
type PostgresContainer struct {
	service
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return &PostgresContainer{start(ctx, t, "postgres", testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	})}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, pc.Host, pc.Port, pgDatabase)
}

// RustFSContainer is an S3-compatible object store
type RustFSContainer struct {
	service
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	return &RustFSContainer{start(ctx, t, "rustfs", testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3AccessKey,
			"RUSTFS_SECRET_KEY": S3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	})}
}

func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}

// RedisContainer backs the generation thread store
type RedisContainer struct {
	service
}

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	return &RedisContainer{start(ctx, t, "redis", testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithStartupTimeout(30 * time.Second),
	})}
}

func (rc *RedisContainer) Addr() string {
	return rc.Host + ":" + rc.Port
}

// NewTestPool migrates the container's database with the production
// migration runner and returns a pool on it.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	dir, err := filepath.Abs(migrationsDir)
	if err != nil {
		t.Fatalf("failed to resolve migrations dir: %v", err)
	}

	var migrateErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if migrateErr = database.Migrate(pc.ConnectionString(), dir, logger.Nop()); migrateErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if migrateErr != nil {
		t.Fatalf("failed to run migrations: %v", migrateErr)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 8, Workers: 4})
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool
}

// MigrationsDir is the repository's migrations directory seen from a package
// two levels below the module root
func MigrationsDir() string {
	return filepath.Join("..", "..", "migrations")
}
