package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

const keyPrefix = "blur:"

// RedisOptions configures a RedisRepository
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisRepository stores records as JSON strings and indexes them per
// fingerprint in a sorted set scored by timestamp
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository connects to Redis and verifies the connection
func NewRedisRepository(ctx context.Context, opts RedisOptions) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping failed: %v", ErrRepositoryUnavailable, err)
	}
	return NewRedisRepositoryWithClient(client, opts.TTL), nil
}

// NewRedisRepositoryWithClient wraps an existing client
func NewRedisRepositoryWithClient(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

// Close releases the underlying connection pool
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func analysisKey(id string) string {
	return keyPrefix + "analysis:" + id
}

func historyKey(fingerprint string) string {
	return keyPrefix + "history:" + fingerprint
}

// Save writes the record and, when it has a fingerprint, indexes it
func (r *RedisRepository) Save(ctx context.Context, record *models.AnalysisRecord) error {
	if err := prepare(record); err != nil {
		return err
	}
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, analysisKey(record.ID), b, r.ttl)
	if record.Fingerprint != "" {
		key := historyKey(record.Fingerprint)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(record.Timestamp.UnixNano()),
			Member: record.ID,
		})
		// keep only the newest MaxHistoryLimit entries
		pipe.ZRemRangeByRank(ctx, key, 0, -MaxHistoryLimit-1)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return nil
}

// Get retrieves a record by ID
func (r *RedisRepository) Get(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	b, err := r.client.Get(ctx, analysisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	var record models.AnalysisRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &record, nil
}

// History returns the newest records for fingerprint. Index entries whose
// record has expired are skipped.
func (r *RedisRepository) History(ctx context.Context, fingerprint string, limit int) ([]*models.AnalysisRecord, error) {
	limit = normalizeLimit(limit)

	ids, err := r.client.ZRevRange(ctx, historyKey(fingerprint), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = analysisKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	records := make([]*models.AnalysisRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var record models.AnalysisRecord
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}
