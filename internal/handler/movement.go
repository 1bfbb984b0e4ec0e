package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

type movementService interface {
	PageMovements(ctx context.Context, f domain.MovementFilter, limit, offset int) (*ledger.MovementPage, error)
	GetOperation(ctx context.Context, id uuid.UUID) (*domain.Operation, []domain.Movement, error)
}

type MovementHandler struct {
	movements movementService
}

func NewMovementHandler(movements movementService) *MovementHandler {
	return &MovementHandler{movements: movements}
}

type movementPageDTO struct {
	Movements []movementDTO `json:"movements"`
	Total     int           `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// List serves the audit view. Query parameters: box, project_id, operation_id, from, to,
// type (comma separated), limit, offset.
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, errs := parseMovementFilter(r)
	if len(errs) > 0 {
		RespondValidationError(w, errs)
		return
	}

	page, err := h.movements.PageMovements(r.Context(), filter, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, movementPageDTO{
		Movements: toMovementDTOs(page.Movements),
		Total:     page.Total,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

func parseMovementFilter(r *http.Request) (domain.MovementFilter, fields) {
	q := r.URL.Query()
	var f fields
	var filter domain.MovementFilter

	if v := q.Get("box"); v != "" {
		owner := f.box("box", v)
		filter.Owner = &owner
	}
	if v := q.Get("project_id"); v != "" {
		id := f.uuid("project_id", v)
		filter.ProjectID = &id
	}
	if v := q.Get("operation_id"); v != "" {
		id := f.uuid("operation_id", v)
		filter.OperationID = &id
	}
	if t := f.date("from", q.Get("from"), false); !t.IsZero() {
		filter.From = &t
	}
	if t := f.date("to", q.Get("to"), false); !t.IsZero() {
		filter.To = &t
	}
	if v := q.Get("type"); v != "" {
		for _, s := range strings.Split(v, ",") {
			mt := domain.MovementType(strings.TrimSpace(s))
			if !mt.IsValid() {
				f.add("type", "unknown movement type "+string(mt))
				continue
			}
			filter.Types = append(filter.Types, mt)
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		f.add("to", "must not be before from")
	}
	return filter, f
}

func (h *MovementHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	op, movements, err := h.movements.GetOperation(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toOperationDTO(op, movements))
}
