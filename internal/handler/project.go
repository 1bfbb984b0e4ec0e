package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type projectService interface {
	CreateProject(ctx context.Context, name string, currency domain.Currency, clientID *uuid.UUID) (*domain.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error)
	ArchiveProject(ctx context.Context, id uuid.UUID) error
}

type ProjectHandler struct {
	projects projectService
}

func NewProjectHandler(projects projectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type createProjectRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	ClientID string `json:"client_id"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createProjectRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	if body.Name == "" {
		f.add("name", "required")
	}
	c := f.currency("currency", body.Currency)
	var clientID *uuid.UUID
	if body.ClientID != "" {
		id := f.uuid("client_id", body.ClientID)
		clientID = &id
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	p, err := h.projects.CreateProject(r.Context(), body.Name, c, clientID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toProjectDTO(p))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	p, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toProjectDTO(p))
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context(), r.URL.Query().Get("archived") == "true")
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]projectDTO, 0, len(projects))
	for i := range projects {
		dtos = append(dtos, toProjectDTO(&projects[i]))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if err := h.projects.ArchiveProject(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}
