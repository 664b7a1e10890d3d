// Package domain defines the activity timeline model and the storage port.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrStorageUnavailable classifies any transport-level failure of the backing store.
// The service propagates it without retrying; retry policy belongs to the caller's
// transport (HTTP status, queue redelivery).
var ErrStorageUnavailable = errors.New("storage unavailable")

// ValidationError reports a malformed input shape (missing or empty required field).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ActivityItem is one recorded event within an entity's timeline. Immutable once created.
type ActivityItem struct {
	Type         string `json:"type"`
	ActivityTime int64  `json:"activity_time"` // epoch milliseconds
}

// NewActivityItem validates and constructs an ActivityItem. Zero and negative
// timestamps are accepted; there is no lower bound on activity time.
func NewActivityItem(activityType string, activityTime int64) (ActivityItem, error) {
	if activityType == "" {
		return ActivityItem{}, &ValidationError{Field: "activity_type", Reason: "must not be empty"}
	}
	return ActivityItem{Type: activityType, ActivityTime: activityTime}, nil
}

// Activity is the accumulated event history for one (entity id, entity type) pair.
// Insertion order of Activities is append order.
type Activity struct {
	EntityID   string         `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	Activities []ActivityItem `json:"activities"`
}

// NewActivity constructs an empty Activity for the given entity.
func NewActivity(entityID, entityType string) (Activity, error) {
	if entityID == "" {
		return Activity{}, &ValidationError{Field: "entity_id", Reason: "must not be empty"}
	}
	if entityType == "" {
		return Activity{}, &ValidationError{Field: "entity_type", Reason: "must not be empty"}
	}
	return Activity{EntityID: entityID, EntityType: entityType, Activities: []ActivityItem{}}, nil
}

// PartitionKey derives the storage partition key for an entity. The separator is
// not escaped; entity ids and types must not rely on it being unambiguous.
func PartitionKey(entityID, entityType string) string {
	return entityID + "-" + entityType
}

// ItemRecord is the stored row shape: one row per activity item, keyed by
// (partition key, stringified activity time). Two items for the same entity with
// an identical timestamp collapse to one row, last write wins.
type ItemRecord struct {
	PartitionKey string
	SortKey      string
	EntityID     string
	EntityType   string
	ActivityType string
	CreatedAt    int64
}

// RecordFor builds the stored row for one item of an entity's timeline.
func RecordFor(entityID, entityType string, item ActivityItem) ItemRecord {
	return ItemRecord{
		PartitionKey: PartitionKey(entityID, entityType),
		SortKey:      strconv.FormatInt(item.ActivityTime, 10),
		EntityID:     entityID,
		EntityType:   entityType,
		ActivityType: item.Type,
		CreatedAt:    item.ActivityTime,
	}
}

// Item validates the stored row and converts it back into an ActivityItem.
func (r ItemRecord) Item() (ActivityItem, error) {
	if r.EntityID == "" || r.EntityType == "" {
		return ActivityItem{}, &ValidationError{Field: "entity", Reason: "stored row missing entity attributes"}
	}
	if _, err := strconv.ParseInt(r.SortKey, 10, 64); err != nil {
		return ActivityItem{}, &ValidationError{Field: "sort_key", Reason: "not a numeric timestamp"}
	}
	return NewActivityItem(r.ActivityType, r.CreatedAt)
}

// Store captures the persistence operations consumed by the service. Put is an
// idempotent upsert keyed by (partition key, sort key); Query returns every row
// sharing a partition key, an empty slice when none exist.
type Store interface {
	Put(ctx context.Context, record ItemRecord) error
	Query(ctx context.Context, partitionKey string) ([]ItemRecord, error)
}
