package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rideshare/internal/chat"
	"rideshare/internal/storage/memory"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLookupCachesRides(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.PutRide(ctx, chat.Ride{ID: "cache-ride-1", Status: chat.RideActive}))

	rides := NewRides(client, store, time.Minute, zerolog.Nop())
	require.NoError(t, rides.Invalidate(ctx, "cache-ride-1"))
	t.Cleanup(func() { _ = rides.Invalidate(context.Background(), "cache-ride-1") })

	ride, err := rides.Lookup(ctx, "cache-ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RideActive, ride.Status)

	// A status change behind the cache's back is not seen until the entry expires.
	require.NoError(t, store.PutRide(ctx, chat.Ride{ID: "cache-ride-1", Status: chat.RideCompleted}))
	ride, err = rides.Lookup(ctx, "cache-ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RideActive, ride.Status)

	stats := rides.Stats()
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Hits)

	// Writing through the cache drops the stale entry.
	require.NoError(t, rides.PutRide(ctx, chat.Ride{ID: "cache-ride-1", Status: chat.RideCanceled}))
	ride, err = rides.Lookup(ctx, "cache-ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RideCanceled, ride.Status)
}

func TestLookupDoesNotCacheUnknownRides(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	store := memory.NewStore()
	rides := NewRides(client, store, time.Minute, zerolog.Nop())
	t.Cleanup(func() { _ = rides.Invalidate(context.Background(), "cache-ride-new") })

	_, err := rides.Lookup(ctx, "cache-ride-new")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	require.NoError(t, store.PutRide(ctx, chat.Ride{ID: "cache-ride-new", Status: chat.RidePending}))
	ride, err := rides.Lookup(ctx, "cache-ride-new")
	require.NoError(t, err)
	assert.Equal(t, chat.RidePending, ride.Status)
}

func TestLookupFallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.PutRide(ctx, chat.Ride{ID: "ride-1", Status: chat.RideActive}))
	rides := NewRides(client, store, time.Minute, zerolog.Nop())

	ride, err := rides.Lookup(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RideActive, ride.Status)
	assert.EqualValues(t, 2, rides.Stats().Errors)

	_, err = rides.Lookup(ctx, "ride-404")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
