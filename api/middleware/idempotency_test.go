package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type memoryIdempotencyStore struct {
	values map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string]string{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "tnd:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

const approvePath = "/api/admin/v1/submissions/photos/sub-1/approve"

func TestIdempotencyRequiresKeyOnModerationPost(t *testing.T) {
	t.Parallel()

	handler := Idempotency(newMemoryIdempotencyStore(), testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPost, approvePath, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	calls := 0
	handler := Idempotency(newMemoryIdempotencyStore(), testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"sub-1"}}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, approvePath, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.Code, http.StatusOK)
		}
		if !strings.Contains(resp.Body.String(), "sub-1") {
			t.Fatalf("unexpected body %q", resp.Body.String())
		}
	}

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	t.Parallel()

	handler := Idempotency(newMemoryIdempotencyStore(), testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, approvePath, strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, approvePath, strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, second)

	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusConflict)
	}
}

func TestIdempotencyEnforcedUnderSubRouterMounts(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	calls := 0

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(Idempotency(store, testLogger()))

		r.Route("/api/v1/submissions", func(r chi.Router) {
			r.Post("/stores", func(w http.ResponseWriter, _ *http.Request) {
				calls++
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"data":{"id":"store-1"}}`))
			})
		})
	})

	keyless := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/stores", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, keyless)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("keyless status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
	if calls != 0 {
		t.Fatalf("handler calls after keyless request = %d, want 0", calls)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/stores", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.Code, http.StatusCreated)
		}
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if len(store.values) != 1 {
		t.Fatalf("stored records = %d, want 1", len(store.values))
	}
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	t.Parallel()

	reached := false
	handler := Idempotency(newMemoryIdempotencyStore(), testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !reached {
		t.Fatal("GET request should bypass idempotency")
	}
}
