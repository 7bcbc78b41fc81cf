package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	value, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, ok := f.values[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.values[key] = toString(value)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeStore) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	n, _ := strconv.ParseInt(f.values[key], 10, 64)
	n++
	f.values[key] = strconv.FormatInt(n, 10)
	cmd.SetVal(n)
	return cmd
}

func (f *fakeStore) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

func TestKeyNamespacing(t *testing.T) {
	t.Parallel()

	client := &Client{}
	if got, want := client.IdempotencyKey("submissions", "abc"), "tnd:idempotency:submissions:abc"; got != want {
		t.Errorf("IdempotencyKey = %q, want %q", got, want)
	}
	if got, want := client.AdminFlagKey("user-1"), "tnd:admin_flag:user-1"; got != want {
		t.Errorf("AdminFlagKey = %q, want %q", got, want)
	}
}

func TestCacheAdminFlagRoundTrip(t *testing.T) {
	t.Parallel()

	client := &Client{store: newFakeStore()}
	ctx := context.Background()

	isAdmin, cached, err := client.CachedAdminFlag(ctx, "user-1")
	if err != nil {
		t.Fatalf("CachedAdminFlag error = %v", err)
	}
	if cached || isAdmin {
		t.Fatalf("CachedAdminFlag = (%v, %v) before caching", isAdmin, cached)
	}

	if err := client.CacheAdminFlag(ctx, "user-1", true, time.Minute); err != nil {
		t.Fatalf("CacheAdminFlag error = %v", err)
	}

	isAdmin, cached, err = client.CachedAdminFlag(ctx, "user-1")
	if err != nil {
		t.Fatalf("CachedAdminFlag error = %v", err)
	}
	if !cached || !isAdmin {
		t.Fatalf("CachedAdminFlag = (%v, %v), want (true, true)", isAdmin, cached)
	}
}

func TestSetNXSecondWriteLoses(t *testing.T) {
	t.Parallel()

	client := &Client{store: newFakeStore()}
	ctx := context.Background()

	first, err := client.SetNX(ctx, "key", "a", time.Minute)
	if err != nil {
		t.Fatalf("SetNX error = %v", err)
	}
	second, err := client.SetNX(ctx, "key", "b", time.Minute)
	if err != nil {
		t.Fatalf("SetNX error = %v", err)
	}
	if !first || second {
		t.Errorf("SetNX = (%v, %v), want (true, false)", first, second)
	}

	value, err := client.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if value != "a" {
		t.Errorf("value = %q, want a", value)
	}
}

func TestUninitializedClient(t *testing.T) {
	t.Parallel()

	client := &Client{}
	ctx := context.Background()

	if err := client.Set(ctx, "k", "v", 0); err == nil {
		t.Error("Set on uninitialized client succeeded")
	}
	if _, err := client.Get(ctx, "k"); err == nil {
		t.Error("Get on uninitialized client succeeded")
	}
	if err := client.Ping(ctx); err == nil {
		t.Error("Ping on uninitialized client succeeded")
	}
}
