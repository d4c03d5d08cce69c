package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestIdemMiddlewareBlocksReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := Idem{R: client, TTL: time.Minute}
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	req.Header.Set("Idempotency-Key", "sale-abc")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("first request should pass: code=%d calls=%d", first.Code, calls)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusConflict {
		t.Fatalf("replay should be rejected with 409, got %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("handler must not run twice, ran %d times", calls)
	}
}

func TestIdemMiddlewarePassesWithoutKey(t *testing.T) {
	idem := Idem{}
	called := false
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	if !called {
		t.Fatal("requests without an idempotency key must pass through")
	}
}
