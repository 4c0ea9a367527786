package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	o := clientOptions(Options{
		Addr:         "cache.internal:6379",
		Username:     "evv",
		Password:     "secret",
		DB:           2,
		PoolSize:     32,
		MinIdleConns: 4,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	assert.Equal(t, "cache.internal:6379", o.Addr)
	assert.Equal(t, "evv", o.Username)
	assert.Equal(t, "secret", o.Password)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 32, o.PoolSize)
	assert.Equal(t, 4, o.MinIdleConns)
	assert.Equal(t, time.Second, o.DialTimeout)
	assert.Equal(t, 2*time.Second, o.ReadTimeout)
	assert.Equal(t, 3*time.Second, o.WriteTimeout)
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "ping redis")
}
