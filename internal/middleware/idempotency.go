package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/cache"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first non-5xx response to a POST carrying
// X-Idempotency-Key. Keys are scoped to the actor and the request path.
// Cache failures are logged and the request is served normally.
func Idempotency(c cache.Cache, ttl time.Duration, log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			scope := r.URL.Path + ":" + key
			if actor, ok := ActorFromContext(ctx); ok {
				scope = actor.ID + ":" + scope
			}
			cacheKey := c.GenerateKey("idempotency", scope)

			cached, err := c.Get(ctx, cacheKey)
			if err != nil {
				log.WarnContext(ctx, "idempotency lookup failed", "key", key, "error", err)
			}
			if cached != "" {
				var stored storedResponse
				if err := json.Unmarshal([]byte(cached), &stored); err == nil {
					if stored.ContentType != "" {
						w.Header().Set("Content-Type", stored.ContentType)
					}
					w.Header().Set(HeaderReplayed, "true")
					w.WriteHeader(stored.Status)
					_, _ = w.Write(stored.Body)
					return
				}
				log.WarnContext(ctx, "discarding unreadable idempotency entry", "key", key)
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(rw, r)

			if rw.statusCode >= http.StatusInternalServerError {
				return
			}
			raw, err := json.Marshal(storedResponse{
				Status:      rw.statusCode,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
			})
			if err != nil {
				log.WarnContext(ctx, "failed to encode idempotent response", "key", key, "error", err)
				return
			}
			if err := c.Set(ctx, cacheKey, string(raw), ttl); err != nil {
				log.WarnContext(ctx, "failed to store idempotent response", "key", key, "error", err)
			}
		})
	}
}
