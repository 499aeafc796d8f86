package upload

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/apperr"
	"invoicedash/internal/config"
	"invoicedash/internal/models"
	"invoicedash/internal/redis"
)

func TestMemoryRegistryExpires(t *testing.T) {
	reg := NewMemoryRegistry()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	file := &models.UploadedFile{FileID: "f-1", FileName: "a.pdf", Size: 10}
	require.NoError(t, reg.Put(ctx, file, time.Minute))

	got, err := reg.Lookup(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.FileName)

	// callers get a copy
	got.FileName = "changed.pdf"
	again, err := reg.Lookup(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", again.FileName)

	now = now.Add(time.Minute)
	_, err = reg.Lookup(ctx, "f-1")
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)

	_, err = reg.Lookup(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
}

func TestMemoryRegistryRejectsEmptyID(t *testing.T) {
	reg := NewMemoryRegistry()
	assert.Error(t, reg.Put(context.Background(), &models.UploadedFile{}, time.Minute))
	assert.Error(t, reg.Put(context.Background(), nil, time.Minute))
}

func TestRedisRegistryRoundTrip(t *testing.T) {
	client := newRedisClient(t)
	reg := NewRedisRegistry(client)
	ctx := context.Background()

	id := uuid.NewString()
	file := &models.UploadedFile{
		FileID:     id,
		FileName:   "invoice.pdf",
		MimeType:   PDFMimeType,
		Size:       42,
		SHA256:     "abc",
		UploadedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, reg.Put(ctx, file, time.Minute))

	got, err := reg.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, file.FileName, got.FileName)
	assert.Equal(t, file.Size, got.Size)
	assert.True(t, file.UploadedAt.Equal(got.UploadedAt))

	ttl, err := client.TTL(ctx, redisKeyPrefix+id)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, err = reg.Lookup(ctx, uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed upload tests")
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := redis.NewRedisClient(&config.Config{Redis: config.RedisConfig{Addr: addr, DB: db}})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}
