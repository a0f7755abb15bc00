package publisher

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	const stream = "couponwatcher:test_messages"

	publisher := NewRedisPublisher(ctx, "localhost:6379", 0, stream, 10)
	defer publisher.Close()

	if err := publisher.Ping(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	client.Del(ctx, stream)
	defer client.Del(ctx, stream)

	require.NoError(t, publisher.Publish(ctx, MessageKey, []byte("test_message")))

	entries, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	encoded := entries[0].Values[MessageKey].(string)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("test_message")), encoded)

	for i := 0; i < 20; i++ {
		require.NoError(t, publisher.Publish(ctx, MessageKey, []byte("filler")))
	}
	require.NoError(t, publisher.TrimStreams())

	n, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(10))
}

func TestRedisPublisherUsesCallerContext(t *testing.T) {
	const stream = "couponwatcher:test_detached"

	live := NewRedisPublisher(context.Background(), "localhost:6379", 0, stream, 10)
	defer live.Close()
	if err := live.Ping(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	client.Del(context.Background(), stream)
	defer client.Del(context.Background(), stream)

	// the publisher outlives the run context it was built with
	runCtx, cancel := context.WithCancel(context.Background())
	publisher := NewRedisPublisher(runCtx, "localhost:6379", 0, stream, 10)
	defer publisher.Close()
	cancel()

	em := NewChatEmitter(publisher, "sl-update")
	require.NoError(t, em.Plain(context.WithoutCancel(runCtx), "failure notice"))

	n, err := client.XLen(context.Background(), stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
