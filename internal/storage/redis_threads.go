package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/openai"
)

const threadKeyPrefix = "lessonlens:thread:"

// RedisConfig holds connection settings for the thread store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// RedisThreadStore keeps generation transcripts until their TTL lapses
type RedisThreadStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisThreadStore(rdb *goredis.Client, ttl time.Duration) *RedisThreadStore {
	return &RedisThreadStore{rdb: rdb, ttl: ttl}
}

// Load returns the transcript stored under id
func (s *RedisThreadStore) Load(ctx context.Context, id string) ([]openai.Message, error) {
	raw, err := s.rdb.Get(ctx, threadKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrThreadExpired.Wrap(fmt.Errorf("thread %q", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	var msgs []openai.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode thread: %w", err)
	}
	return msgs, nil
}

// Save stores messages under id, replacing any previous transcript
func (s *RedisThreadStore) Save(ctx context.Context, id string, messages []openai.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode thread: %w", err)
	}
	if err := s.rdb.Set(ctx, threadKeyPrefix+id, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}
	return nil
}

var _ openai.ThreadStore = (*RedisThreadStore)(nil)
