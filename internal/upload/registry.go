package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"invoicedash/internal/apperr"
	"invoicedash/internal/models"
	"invoicedash/internal/redis"
)

// Registry remembers metadata of recent uploads so later steps can resolve a
// fileId back to what the user sent.
type Registry interface {
	Put(ctx context.Context, file *models.UploadedFile, ttl time.Duration) error
	// Lookup fails with apperr.NotFound for unknown or expired ids.
	Lookup(ctx context.Context, fileID string) (*models.UploadedFile, error)
}

func errUnknownFile(fileID string) error {
	return apperr.Newf(apperr.NotFound, "upload %s not found", fileID)
}

type memoryEntry struct {
	file      models.UploadedFile
	expiresAt time.Time
}

// MemoryRegistry is the in-process Registry used when redis is not configured.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryRegistry) Put(_ context.Context, file *models.UploadedFile, ttl time.Duration) error {
	if file == nil || file.FileID == "" {
		return errors.New("file id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	// drop expired entries so the map does not grow without bound
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}
	m.entries[file.FileID] = memoryEntry{file: *file, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryRegistry) Lookup(_ context.Context, fileID string) (*models.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fileID]
	if !ok || !m.now().Before(e.expiresAt) {
		delete(m.entries, fileID)
		return nil, errUnknownFile(fileID)
	}
	file := e.file
	return &file, nil
}

const redisKeyPrefix = "upload:"

// RedisRegistry stores upload metadata as JSON under upload:<fileId>.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Put(ctx context.Context, file *models.UploadedFile, ttl time.Duration) error {
	if file == nil || file.FileID == "" {
		return errors.New("file id is required")
	}
	payload, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+file.FileID, payload, ttl); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Lookup(ctx context.Context, fileID string) (*models.UploadedFile, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+fileID)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, errUnknownFile(fileID)
		}
		return nil, fmt.Errorf("load upload: %w", err)
	}
	var file models.UploadedFile
	if err := json.Unmarshal([]byte(raw), &file); err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	return &file, nil
}
