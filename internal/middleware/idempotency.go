package middleware

import (
	"net/http"
	"unicode"

	"github.com/josh-kwaku/backoffice-ledger/internal/handler"
)

const maxIdempotencyKeyLen = 255

// IdempotencyKey requires a usable Idempotency-Key header. Replay itself happens in the
// ledger, which records the key with the operation it created.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(handler.IdempotencyKeyHeader)
		if key == "" {
			handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
			return
		}
		if !validKey(key) {
			handler.RespondAppError(w, handler.ErrInvalidIdempotencyKey, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validKey(key string) bool {
	if len(key) > maxIdempotencyKeyLen {
		return false
	}
	for _, c := range key {
		if c > unicode.MaxASCII || !unicode.IsPrint(c) || unicode.IsSpace(c) {
			return false
		}
	}
	return true
}
