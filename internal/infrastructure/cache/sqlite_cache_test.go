package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"radreject/internal/infrastructure/persistence/sqlite/model"
)

func setupSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "cache.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.CacheEntry{}); err != nil {
		t.Fatalf("auto migrate cache_entries: %v", err)
	}
	return NewSQLiteCache(db)
}

func TestSQLiteCacheSetGetDelete(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()
	key := "image_counts:main:2025-03:CR"

	if err := cache.Set(ctx, key, `{"total_images":8}`, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, found, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != `{"total_images":8}` {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, key, `{"total_images":9}`, 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, key)
	if err != nil || !found || value != `{"total_images":9}` {
		t.Fatalf("Get() after update = %q, found=%v, err=%v", value, found, err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, key); err != nil || found {
		t.Fatalf("Get() after delete found=%v err=%v", found, err)
	}
}

func TestSQLiteCacheExpiresEntries(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()
	now := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Set(ctx, "short", "v1", time.Hour); err != nil {
		t.Fatalf("Set(short) error = %v", err)
	}
	if err := cache.Set(ctx, "forever", "v2", 0); err != nil {
		t.Fatalf("Set(forever) error = %v", err)
	}

	if _, found, _ := cache.Get(ctx, "short"); !found {
		t.Fatalf("Get(short) expired too early")
	}

	now = now.Add(2 * time.Hour)
	if _, found, err := cache.Get(ctx, "short"); err != nil || found {
		t.Fatalf("Get(short) after ttl found=%v err=%v", found, err)
	}
	if value, found, err := cache.Get(ctx, "forever"); err != nil || !found || value != "v2" {
		t.Fatalf("Get(forever) = %q found=%v err=%v", value, found, err)
	}

	if err := cache.Set(ctx, "other", "v3", time.Minute); err != nil {
		t.Fatalf("Set(other) error = %v", err)
	}
	now = now.Add(time.Hour)
	purged, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if purged != 1 {
		t.Fatalf("Purge() = %d, want 1", purged)
	}
}

func TestSQLiteCacheRejectsEmptyKey(t *testing.T) {
	cache := setupSQLiteCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "  ", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, ""); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}

func TestRedisCacheAgainstLiveServer(t *testing.T) {
	addr := os.Getenv("RR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RR_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, addr)
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	if err := cache.Set(ctx, key, "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if value, found, err := cache.Get(ctx, key); err != nil || !found || value != "v" {
		t.Fatalf("Get() = %q found=%v err=%v", value, found, err)
	}
	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
