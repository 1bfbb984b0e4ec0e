package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/backoffice-ledger/internal/auth"
	"github.com/josh-kwaku/backoffice-ledger/internal/handler"
)

const testSecret = "middleware-test-secret"

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken("ana", role, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid viewer", "Bearer " + token(t, auth.RoleViewer), http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/boxes", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(testSecret)(ok).ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestRequireTreasurer(t *testing.T) {
	tests := []struct {
		role   auth.Role
		status int
	}{
		{auth.RoleViewer, http.StatusForbidden},
		{auth.RoleTreasurer, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
			r.Header.Set("Authorization", "Bearer "+token(t, tt.role))
			rec := httptest.NewRecorder()
			Auth(testSecret)(RequireTreasurer(ok)).ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireTreasurer_WithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireTreasurer(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/payments", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdempotencyKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		status int
		code   string
	}{
		{"missing", "", http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY"},
		{"contains space", "a b", http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY"},
		{"too long", strings.Repeat("k", maxIdempotencyKeyLen+1), http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY"},
		{"non ascii", "pago-ñ", http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY"},
		{"uuid", "6f1d2c0e-8a6b-4c61-9f0b-2b0f5c8f1a77", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
			if tt.key != "" {
				r.Header.Set(handler.IdempotencyKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			IdempotencyKey(ok).ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestTracing_PropagatesRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/v1/boxes", nil)
	r.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	Tracing(next).ServeHTTP(rec, r)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recovery(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/boxes", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestTracing_ReplacesUnusableRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/boxes", nil)
	r.Header.Set("X-Request-ID", "has spaces in it")
	rec := httptest.NewRecorder()
	Tracing(ok).ServeHTTP(rec, r)

	got := rec.Header().Get("X-Request-ID")
	assert.NotEqual(t, "has spaces in it", got)
	assert.Len(t, got, 36)
}
