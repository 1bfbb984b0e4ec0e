package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

type projectRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Project, error)
	List(ctx context.Context, includeArchived bool) ([]domain.Project, error)
	Archive(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
}

type boxRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, owner domain.BoxRef, now time.Time) (*domain.CashBox, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, owner domain.BoxRef) (*domain.CashBox, error)
	Retire(ctx context.Context, tx *sql.Tx, box *domain.CashBox, at time.Time) error
}

type openLoanCounter interface {
	CountOpenTx(ctx context.Context, tx *sql.Tx, projectID uuid.UUID) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// ProjectService keeps a project and its cash box in step: both are created together and
// the box is retired when the project is archived.
type ProjectService struct {
	projects projectRepo
	boxes    boxRepo
	loans    openLoanCounter
	db       txRunner
}

func NewProjectService(projects projectRepo, boxes boxRepo, loans openLoanCounter, db txRunner) *ProjectService {
	return &ProjectService{projects: projects, boxes: boxes, loans: loans, db: db}
}

func (s *ProjectService) CreateProject(ctx context.Context, name string, currency domain.Currency, clientID *uuid.UUID) (*domain.Project, error) {
	log := logging.FromContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("CreateProject: name: %w", domain.ErrInvalidRequest)
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("CreateProject: %w", domain.ErrInvalidCurrency)
	}

	p := &domain.Project{
		ID:        uuid.New(),
		Name:      name,
		Currency:  currency,
		ClientID:  clientID,
		CreatedAt: time.Now().UTC(),
	}

	var box *domain.CashBox
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.projects.Create(ctx, tx, p); err != nil {
			return err
		}
		var err error
		box, err = s.boxes.CreateTx(ctx, tx, domain.ProjectBox(p.ID), p.CreatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CreateProject: %w", err)
	}

	log.Info("project created", "project_id", p.ID, "box_id", box.ID, "currency", currency)
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetProject: %w", err)
	}
	return p, nil
}

func (s *ProjectService) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	projects, err := s.projects.List(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("ListProjects: %w", err)
	}
	return projects, nil
}

// ArchiveProject retires the project's box. A box still holding money, or a project that is
// party to a loan that is not yet paid or cancelled, cannot be archived.
func (s *ProjectService) ArchiveProject(ctx context.Context, id uuid.UUID) error {
	log := logging.FromContext(ctx)

	now := time.Now().UTC()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := s.projects.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.IsArchived() {
			return fmt.Errorf("project %s already archived: %w", id, domain.ErrBoxRetired)
		}

		box, err := s.boxes.GetForUpdate(ctx, tx, domain.ProjectBox(id))
		if err != nil {
			return err
		}
		if !box.Balance.IsZero() {
			return fmt.Errorf("holds ARS %s USD %s: %w", box.Balance.ARS, box.Balance.USD, domain.ErrProjectHasFunds)
		}

		open, err := s.loans.CountOpenTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%d open loans: %w", open, domain.ErrProjectHasOpenLoans)
		}

		if err := s.boxes.Retire(ctx, tx, box, now); err != nil {
			return err
		}
		return s.projects.Archive(ctx, tx, id, now)
	})
	if err != nil {
		return fmt.Errorf("ArchiveProject: %w", err)
	}

	log.Info("project archived", "project_id", id)
	return nil
}
