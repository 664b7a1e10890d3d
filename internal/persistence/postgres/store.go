// Package postgres implements the domain storage port on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activity/internal/domain"
	"example.com/activity/internal/observability"
)

const defaultHandleTTL = 5 * time.Minute

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithHandleTTL overrides how long the cached pool handle is trusted before
// being revalidated.
func WithHandleTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger overrides the connection-lifecycle logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store provides activity item persistence backed by a single activity_items
// table. The underlying pool handle is cached for a bounded window and refreshed
// transparently; the cache is a performance measure, not a correctness mechanism.
type Store struct {
	connString string
	ttl        time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	pool    *pgxpool.Pool
	expires time.Time
}

// NewStore constructs a Store. The connection is opened lazily on first use.
func NewStore(connString string, opts ...Option) *Store {
	s := &Store{
		connString: connString,
		ttl:        defaultHandleTTL,
		logger:     log.New(log.Writer(), "[postgres] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handle returns the cached pool, dialing or revalidating it once the TTL lapses.
func (s *Store) handle(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.pool != nil {
		if now.Before(s.expires) {
			return s.pool, nil
		}
		if err := s.pool.Ping(ctx); err == nil {
			s.expires = now.Add(s.ttl)
			return s.pool, nil
		}
		s.logger.Printf("cached pool failed ping, reconnecting")
		s.pool.Close()
		s.pool = nil
	}

	s.logger.Printf("opening connection pool")
	pool, err := pgxpool.New(ctx, s.connString)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", domain.ErrStorageUnavailable, err)
	}
	s.pool = pool
	s.expires = now.Add(s.ttl)
	return pool, nil
}

// Put upserts one stored row keyed by (partition_key, sort_key). A row that
// already exists for the key is overwritten, last write wins.
func (s *Store) Put(ctx context.Context, record domain.ItemRecord) error {
	pool, err := s.handle(ctx)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO activity_items (partition_key, sort_key, entity_id, entity_type, activity_type, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (partition_key, sort_key) DO UPDATE
        SET entity_id = EXCLUDED.entity_id,
            entity_type = EXCLUDED.entity_type,
            activity_type = EXCLUDED.activity_type,
            created_at = EXCLUDED.created_at`

	if _, err := pool.Exec(ctx, stmt,
		record.PartitionKey,
		record.SortKey,
		record.EntityID,
		record.EntityType,
		record.ActivityType,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: put %s/%s: %v", domain.ErrStorageUnavailable, record.PartitionKey, record.SortKey, err)
	}

	observability.RecordActivityPersisted(time.Now().UTC())
	return nil
}

// Query returns every row sharing the partition key. No ordering is imposed;
// callers take rows in whatever order storage returns them.
func (s *Store) Query(ctx context.Context, partitionKey string) ([]domain.ItemRecord, error) {
	pool, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	const query = `SELECT partition_key, sort_key, entity_id, entity_type, activity_type, created_at
        FROM activity_items WHERE partition_key = $1`

	rows, err := pool.Query(ctx, query, partitionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrStorageUnavailable, partitionKey, err)
	}
	defer rows.Close()

	records := make([]domain.ItemRecord, 0)
	for rows.Next() {
		var record domain.ItemRecord
		if err := rows.Scan(&record.PartitionKey, &record.SortKey, &record.EntityID, &record.EntityType, &record.ActivityType, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStorageUnavailable, partitionKey, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrStorageUnavailable, partitionKey, err)
	}

	return records, nil
}

// Close releases the cached pool, if one was opened.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
