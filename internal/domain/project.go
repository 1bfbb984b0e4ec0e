package domain

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID         uuid.UUID
	Name       string
	Currency   Currency
	ClientID   *uuid.UUID
	ArchivedAt *time.Time
	CreatedAt  time.Time
}

func (p *Project) IsArchived() bool { return p.ArchivedAt != nil }
