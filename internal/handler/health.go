package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type boxGetter interface {
	GetBox(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error)
}

type HealthHandler struct {
	db    pinger
	boxes boxGetter
}

func NewHealthHandler(db pinger, boxes boxGetter) *HealthHandler {
	return &HealthHandler{db: db, boxes: boxes}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "ledger-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports ready once the database answers and the Master and Admin boxes exist.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "boxes": "ok"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		checks["boxes"] = "unknown"
		httpStatus = http.StatusServiceUnavailable
	} else {
		for _, owner := range []domain.BoxRef{domain.MasterBox, domain.AdminBox} {
			if _, err := h.boxes.GetBox(r.Context(), owner); err != nil {
				slog.Warn("readiness check failed: box missing", "owner", owner.String(), "error", err)
				checks["boxes"] = "missing " + owner.String()
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
