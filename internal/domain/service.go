package domain

import (
	"context"
	"fmt"
	"log"
)

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used for row-level warnings.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service implements the read and append operations over a Store.
type Service struct {
	store  Store
	logger *log.Logger
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.New(log.Writer(), "[activity] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetActivity returns the accumulated history for an entity. An entity with no
// stored rows yields an Activity with an empty item list, not an error. Rows that
// fail shape validation are skipped with a warning; only a storage failure is fatal.
// Items are returned in whatever order storage produced them.
func (s *Service) GetActivity(ctx context.Context, entityID, entityType string) (Activity, error) {
	activity, err := NewActivity(entityID, entityType)
	if err != nil {
		return Activity{}, err
	}

	records, err := s.store.Query(ctx, PartitionKey(entityID, entityType))
	if err != nil {
		return Activity{}, fmt.Errorf("query activity items: %w", err)
	}

	for _, record := range records {
		item, itemErr := record.Item()
		if itemErr != nil {
			s.logger.Printf("skipping malformed activity row (partition=%s, sort=%s): %v",
				record.PartitionKey, record.SortKey, itemErr)
			continue
		}
		activity.Activities = append(activity.Activities, item)
	}

	return activity, nil
}

// AppendActivity records one new activity item for an entity and returns the
// post-append history as observed by this call.
//
// The whole in-memory history is rewritten, one upsert per item, on every append.
// Concurrent appends to the same entity race these rewrites: each reads the old
// list, appends independently, and last write wins per row. Partial writes are
// not rolled back on failure.
func (s *Service) AppendActivity(ctx context.Context, entityID, entityType, activityType string, activityTime int64) (Activity, error) {
	item, err := NewActivityItem(activityType, activityTime)
	if err != nil {
		return Activity{}, err
	}

	activity, err := s.GetActivity(ctx, entityID, entityType)
	if err != nil {
		return Activity{}, err
	}
	activity.Activities = append(activity.Activities, item)

	for _, it := range activity.Activities {
		if err := s.store.Put(ctx, RecordFor(entityID, entityType, it)); err != nil {
			return Activity{}, fmt.Errorf("store activity item: %w", err)
		}
	}

	return activity, nil
}
