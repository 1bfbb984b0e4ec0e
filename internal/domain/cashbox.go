package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerMaster   OwnerKind = "master"
	OwnerAdmin    OwnerKind = "admin"
	OwnerProject  OwnerKind = "project"
	OwnerExternal OwnerKind = "external"
)

func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerMaster, OwnerAdmin, OwnerProject, OwnerExternal:
		return true
	}
	return false
}

// BoxRef identifies the owner of a cash box. Master, Admin and External use uuid.Nil as Ref.
type BoxRef struct {
	Kind OwnerKind
	Ref  uuid.UUID
}

var (
	MasterBox   = BoxRef{Kind: OwnerMaster}
	AdminBox    = BoxRef{Kind: OwnerAdmin}
	ExternalBox = BoxRef{Kind: OwnerExternal}
)

func ProjectBox(projectID uuid.UUID) BoxRef {
	return BoxRef{Kind: OwnerProject, Ref: projectID}
}

func (r BoxRef) IsExternal() bool { return r.Kind == OwnerExternal }

func (r BoxRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("owner kind %q: %w", r.Kind, ErrInvalidRequest)
	}
	if r.Kind == OwnerProject && r.Ref == uuid.Nil {
		return fmt.Errorf("project box without project id: %w", ErrInvalidRequest)
	}
	if r.Kind != OwnerProject && r.Ref != uuid.Nil {
		return fmt.Errorf("%s box takes no owner ref: %w", r.Kind, ErrInvalidRequest)
	}
	return nil
}

func (r BoxRef) String() string {
	if r.Kind == OwnerProject {
		return fmt.Sprintf("project:%s", r.Ref)
	}
	return string(r.Kind)
}

// ParseBoxRef reads the form String produces: "master", "admin" or "project:<uuid>".
func ParseBoxRef(s string) (BoxRef, error) {
	kind, ref, found := strings.Cut(s, ":")
	r := BoxRef{Kind: OwnerKind(kind)}
	if found {
		id, err := uuid.Parse(ref)
		if err != nil {
			return BoxRef{}, fmt.Errorf("box %q: %w", s, ErrInvalidRequest)
		}
		r.Ref = id
	}
	if r.IsExternal() {
		return BoxRef{}, fmt.Errorf("external is not a box: %w", ErrInvalidRequest)
	}
	if err := r.Validate(); err != nil {
		return BoxRef{}, err
	}
	return r, nil
}

type BoxStatus string

const (
	BoxStatusActive  BoxStatus = "active"
	BoxStatusRetired BoxStatus = "retired"
)

type CashBox struct {
	ID               uuid.UUID
	Owner            BoxRef
	Balance          Balance
	LifetimeReceived Balance
	LifetimePaid     Balance
	Status           BoxStatus
	Version          int64
	LastMovementAt   *time.Time
	CreatedAt        time.Time
	RetiredAt        *time.Time
}

func (b *CashBox) IsRetired() bool { return b.Status == BoxStatusRetired }

// BoxDelta is the net change one operation applies to one box.
type BoxDelta struct {
	Balance  Balance
	Received Balance
	Paid     Balance
	At       time.Time
}
