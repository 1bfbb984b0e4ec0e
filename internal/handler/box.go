package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

type boxService interface {
	GetBox(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error)
	ListBoxes(ctx context.Context, kind *domain.OwnerKind) ([]domain.CashBox, error)
	MovementSums(ctx context.Context, owner domain.BoxRef) (domain.BoxSums, error)
}

type auditService interface {
	VerifyAll(ctx context.Context) ([]ledger.Mismatch, error)
}

type BoxHandler struct {
	boxes   boxService
	auditor auditService
}

func NewBoxHandler(boxes boxService, auditor auditService) *BoxHandler {
	return &BoxHandler{boxes: boxes, auditor: auditor}
}

func (h *BoxHandler) List(w http.ResponseWriter, r *http.Request) {
	var kind *domain.OwnerKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k := domain.OwnerKind(v)
		kind = &k
	}

	boxes, err := h.boxes.ListBoxes(r.Context(), kind)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]boxDTO, 0, len(boxes))
	for i := range boxes {
		dtos = append(dtos, toBoxDTO(&boxes[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *BoxHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(r)
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	box, err := h.boxes.GetBox(r.Context(), owner)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toBoxDTO(box))
}

type boxSumsDTO struct {
	Owner    string     `json:"owner"`
	Inbound  balanceDTO `json:"inbound"`
	Outbound balanceDTO `json:"outbound"`
	Net      balanceDTO `json:"net"`
}

func (h *BoxHandler) Sums(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(r)
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sums, err := h.boxes.MovementSums(r.Context(), owner)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, boxSumsDTO{
		Owner:    owner.String(),
		Inbound:  toBalanceDTO(sums.Inbound),
		Outbound: toBalanceDTO(sums.Outbound),
		Net:      toBalanceDTO(sums.Net()),
	})
}

type auditDTO struct {
	Balanced   bool          `json:"balanced"`
	Mismatches []mismatchDTO `json:"mismatches"`
}

type mismatchDTO struct {
	Owner    string     `json:"owner"`
	Stored   balanceDTO `json:"stored"`
	Computed balanceDTO `json:"computed"`
}

func (h *BoxHandler) Audit(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.auditor.VerifyAll(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := auditDTO{Balanced: len(mismatches) == 0, Mismatches: make([]mismatchDTO, 0, len(mismatches))}
	for _, m := range mismatches {
		logging.FromContext(r.Context()).Error("box out of balance", "owner", m.Owner.String(), "error", m.Error())
		dto.Mismatches = append(dto.Mismatches, mismatchDTO{
			Owner:    m.Owner.String(),
			Stored:   toBalanceDTO(m.Stored),
			Computed: toBalanceDTO(m.Computed),
		})
	}
	RespondSuccess(w, http.StatusOK, dto)
}

// ownerVar reads the {owner} route variable: master, admin or project:<uuid>.
func ownerVar(r *http.Request) (domain.BoxRef, bool) {
	owner, err := domain.ParseBoxRef(mux.Vars(r)["owner"])
	return owner, err == nil
}
