package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/cache"
)

func TestIdempotency(t *testing.T) {
	calls := 0
	status := http.StatusCreated
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"n":` + strconv.Itoa(calls) + `}`))
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Idempotency(cache.NewMemoryCache("test"), time.Hour, log)(next)

	do := func(method, path, actorID, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		req = req.WithContext(WithActor(req.Context(), Actor{ID: actorID, Role: RoleCustomer}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := do(http.MethodPost, "/orders", "c-1", "k1")
	if first.Code != http.StatusCreated || first.Body.String() != `{"n":1}` {
		t.Fatalf("first = %d %s", first.Code, first.Body.String())
	}

	replay := do(http.MethodPost, "/orders", "c-1", "k1")
	if replay.Code != http.StatusCreated || replay.Body.String() != `{"n":1}` {
		t.Errorf("replay = %d %s, want 201 {\"n\":1}", replay.Code, replay.Body.String())
	}
	if replay.Header().Get(HeaderReplayed) != "true" {
		t.Errorf("replay missing %s header", HeaderReplayed)
	}
	if replay.Header().Get("Content-Type") != "application/json" {
		t.Errorf("replay Content-Type = %q", replay.Header().Get("Content-Type"))
	}
	if calls != 1 {
		t.Errorf("calls after replay = %d, want 1", calls)
	}

	tests := []struct {
		name   string
		method string
		path   string
		actor  string
		key    string
	}{
		{name: "different actor", method: http.MethodPost, path: "/orders", actor: "c-2", key: "k1"},
		{name: "different path", method: http.MethodPost, path: "/payments", actor: "c-1", key: "k1"},
		{name: "different key", method: http.MethodPost, path: "/orders", actor: "c-1", key: "k2"},
		{name: "no key", method: http.MethodPost, path: "/orders", actor: "c-1"},
		{name: "non-POST", method: http.MethodPut, path: "/orders", actor: "c-1", key: "k1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls
			w := do(tt.method, tt.path, tt.actor, tt.key)
			if calls != before+1 {
				t.Errorf("handler not invoked")
			}
			if w.Header().Get(HeaderReplayed) != "" {
				t.Errorf("unexpected replay")
			}
		})
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Idempotency(cache.NewMemoryCache("test"), time.Hour, log)(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(HeaderIdempotencyKey, "k")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
