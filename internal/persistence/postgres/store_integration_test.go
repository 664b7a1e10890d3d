//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/activity/internal/domain"
)

func TestStorePutQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := startStore(t, ctx)

	entityID := uuid.NewString()
	record := domain.RecordFor(entityID, "product", domain.ActivityItem{
		Type:         "product.productCreated.v1",
		ActivityTime: 1700000000000,
	})

	require.NoError(t, store.Put(ctx, record))

	records, err := store.Query(ctx, domain.PartitionKey(entityID, "product"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, record, records[0])
}

func TestStoreQueryUnknownPartitionKeyIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := startStore(t, ctx)

	records, err := store.Query(ctx, domain.PartitionKey(uuid.NewString(), "order"))
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestStorePutLastWriteWinsOnSortKeyCollision(t *testing.T) {
	ctx := context.Background()
	store := startStore(t, ctx)

	entityID := uuid.NewString()
	first := domain.RecordFor(entityID, "product", domain.ActivityItem{Type: "product.productCreated.v1", ActivityTime: 1700000000000})
	second := domain.RecordFor(entityID, "product", domain.ActivityItem{Type: "product.productUpdated.v1", ActivityTime: 1700000000000})

	require.NoError(t, store.Put(ctx, first))
	require.NoError(t, store.Put(ctx, second))

	records, err := store.Query(ctx, domain.PartitionKey(entityID, "product"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "product.productUpdated.v1", records[0].ActivityType)
}

func TestServiceAppendAndReadThroughStore(t *testing.T) {
	ctx := context.Background()
	store := startStore(t, ctx)
	service := domain.NewService(store)

	entityID := uuid.NewString()
	_, err := service.AppendActivity(ctx, entityID, "order", "orders.orderCreated.v1", 1700000000000)
	require.NoError(t, err)
	_, err = service.AppendActivity(ctx, entityID, "order", "orders.orderConfirmed.v1", 1700000005000)
	require.NoError(t, err)

	activity, err := service.GetActivity(ctx, entityID, "order")
	require.NoError(t, err)
	require.Len(t, activity.Activities, 2)

	types := []string{activity.Activities[0].Type, activity.Activities[1].Type}
	require.ElementsMatch(t, []string{"orders.orderCreated.v1", "orders.orderConfirmed.v1"}, types)
}

func startStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("activity"),
		postgrescontainer.WithUsername("activity"),
		postgrescontainer.WithPassword("activity"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	store := NewStore(connStr, WithHandleTTL(time.Minute))
	t.Cleanup(store.Close)
	return store
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
