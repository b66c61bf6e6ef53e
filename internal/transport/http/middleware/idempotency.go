package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"appraze/internal/transport/http/api"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 200
)

const ctxKeyIdempotency ctxKey = "idempotency_key"

// IdempotencyKey validates the optional Idempotency-Key header and exposes it
// to handlers through GetIdempotencyKey.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen || strings.IndexFunc(key, func(c rune) bool { return !unicode.IsPrint(c) }) >= 0 {
			api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key must be at most 200 printable characters", GetRequestID(r.Context()))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyIdempotency, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetIdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyIdempotency).(string)
	return key
}
