package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeBoxes struct{ missing domain.BoxRef }

func (f fakeBoxes) GetBox(_ context.Context, owner domain.BoxRef) (*domain.CashBox, error) {
	if owner == f.missing {
		return nil, domain.ErrBoxNotFound
	}
	return &domain.CashBox{Owner: owner}, nil
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		db     pinger
		boxes  boxGetter
		status int
		body   string
	}{
		{"ready", fakePinger{}, fakeBoxes{}, http.StatusOK, `"status":"ok"`},
		{"database down", fakePinger{err: errors.New("refused")}, fakeBoxes{}, http.StatusServiceUnavailable, `"database":"down"`},
		{"not bootstrapped", fakePinger{}, fakeBoxes{missing: domain.AdminBox}, http.StatusServiceUnavailable, `"boxes":"missing admin"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db, tt.boxes).Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}
