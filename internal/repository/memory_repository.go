package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/anime-shed/blur-inspector-go/pkg/models"
)

// MemoryRepository keeps analysis records in process memory with a TTL
type MemoryRepository struct {
	cache *cache.Cache
}

// NewMemoryRepository creates an in-memory repository. ttl <= 0 keeps records forever.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	expiration := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
	}
	cleanup := 10 * time.Minute
	if ttl > 0 && ttl < cleanup {
		cleanup = ttl
	}
	return &MemoryRepository{
		cache: cache.New(expiration, cleanup),
	}
}

// Save stores a copy of record
func (r *MemoryRepository) Save(ctx context.Context, record *models.AnalysisRecord) error {
	if err := prepare(record); err != nil {
		return err
	}
	stored := *record
	r.cache.Set(record.ID, &stored, cache.DefaultExpiration)
	return nil
}

// Get retrieves a record by ID
func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	record := *v.(*models.AnalysisRecord)
	return &record, nil
}

// History scans all live records for the fingerprint
func (r *MemoryRepository) History(ctx context.Context, fingerprint string, limit int) ([]*models.AnalysisRecord, error) {
	limit = normalizeLimit(limit)

	var records []*models.AnalysisRecord
	for _, item := range r.cache.Items() {
		rec := item.Object.(*models.AnalysisRecord)
		if rec.Fingerprint == fingerprint {
			cp := *rec
			records = append(records, &cp)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// prepare assigns an ID and timestamp to a new record
func prepare(record *models.AnalysisRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	return nil
}
