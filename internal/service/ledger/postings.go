package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

// role names a party of an operation; it resolves to a concrete box per call.
type role int

const (
	roleExternal role = iota
	roleMaster
	roleAdmin
	roleProject
	roleFrom
	roleTo
)

func (r role) String() string {
	switch r {
	case roleExternal:
		return "external"
	case roleMaster:
		return "master"
	case roleAdmin:
		return "admin"
	case roleProject:
		return "project"
	case roleFrom:
		return "from"
	case roleTo:
		return "to"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// amountSide picks which side of the operation's flow a leg moves.
type amountSide int

const (
	// sideGross moves the same amount out of the source and into the destination.
	sideGross amountSide = iota
	// sideExchange moves the source amount out and the converted amount in.
	sideExchange
)

type leg struct {
	Type   domain.MovementType
	From   role
	To     role
	Amount amountSide
}

// postingRules is the only place that decides which boxes an operation touches.
// Reversals are derived from the reversed operation's movements and carry no rule.
var postingRules = map[domain.OperationKind][]leg{
	domain.OpProjectPayment: {
		{Type: domain.MovementProjectIncome, From: roleExternal, To: roleProject},
		{Type: domain.MovementMasterDuplication, From: roleExternal, To: roleMaster},
	},
	domain.OpFeeCollection: {
		{Type: domain.MovementFeeCollection, From: roleProject, To: roleAdmin},
	},
	domain.OpAdminExpense: {
		{Type: domain.MovementAdminExpense, From: roleAdmin, To: roleExternal},
	},
	domain.OpMasterWithdrawal: {
		{Type: domain.MovementMasterWithdrawal, From: roleMaster, To: roleExternal},
	},
	domain.OpCurrencyExchange: {
		{Type: domain.MovementCurrencyExchange, From: roleFrom, To: roleFrom, Amount: sideExchange},
	},
	domain.OpTransfer: {
		{Type: domain.MovementManualTransfer, From: roleFrom, To: roleTo},
	},
	domain.OpLoanDisbursement: {
		{Type: domain.MovementLoanDisbursement, From: roleFrom, To: roleTo},
	},
	domain.OpLoanRepayment: {
		{Type: domain.MovementLoanRepayment, From: roleFrom, To: roleTo},
	},
}

func init() {
	if err := validateRules(postingRules); err != nil {
		panic(err)
	}
}

// validateRules rejects tables in which external money reaches a project box without
// an equal mirror into Master within the same operation.
func validateRules(rules map[domain.OperationKind][]leg) error {
	for kind, legs := range rules {
		if len(legs) == 0 {
			return fmt.Errorf("posting rule %s: no legs", kind)
		}
		var credited, mirrored bool
		for _, l := range legs {
			if !l.Type.IsValid() || l.Type == domain.MovementReversal {
				return fmt.Errorf("posting rule %s: movement type %q not allowed", kind, l.Type)
			}
			if l.From == roleExternal && l.To == roleExternal {
				return fmt.Errorf("posting rule %s: %s moves external to external", kind, l.Type)
			}
			if l.Amount == sideExchange && l.From != l.To {
				return fmt.Errorf("posting rule %s: exchange leg %s must stay in one box", kind, l.Type)
			}
			if l.From == roleExternal && l.To == roleProject {
				credited = true
			}
			if l.Type == domain.MovementMasterDuplication && l.From == roleExternal && l.To == roleMaster {
				mirrored = true
			}
		}
		if credited && !mirrored {
			return fmt.Errorf("posting rule %s: project income without master duplication", kind)
		}
	}
	return nil
}

// parties binds roles to boxes for one call.
type parties struct {
	Project domain.BoxRef
	From    domain.BoxRef
	To      domain.BoxRef
}

func (p parties) resolve(r role) (domain.BoxRef, error) {
	var ref domain.BoxRef
	switch r {
	case roleExternal:
		return domain.ExternalBox, nil
	case roleMaster:
		return domain.MasterBox, nil
	case roleAdmin:
		return domain.AdminBox, nil
	case roleProject:
		ref = p.Project
	case roleFrom:
		ref = p.From
	case roleTo:
		ref = p.To
	}
	if ref.Kind == "" {
		return domain.BoxRef{}, fmt.Errorf("no box bound to role %s: %w", r, domain.ErrInvalidRequest)
	}
	return ref, nil
}

// flow is the money an operation moves: Amount in Currency leaves, DestAmount in
// DestCurrency arrives. For every kind except exchange the two sides are equal.
type flow struct {
	Amount       decimal.Decimal
	DestAmount   decimal.Decimal
	Currency     domain.Currency
	DestCurrency domain.Currency
}

// expand turns the posting rule for kind into movement templates, one per leg, attaching
// details[i] to leg i.
func expand(kind domain.OperationKind, p parties, f flow, details ...domain.MovementDetail) ([]domain.Movement, error) {
	legs, ok := postingRules[kind]
	if !ok {
		return nil, fmt.Errorf("expand: no posting rule for %s: %w", kind, domain.ErrInvalidRequest)
	}
	if len(details) != len(legs) {
		return nil, fmt.Errorf("expand: %s wants %d details, got %d", kind, len(legs), len(details))
	}

	movements := make([]domain.Movement, 0, len(legs))
	for i, l := range legs {
		src, err := p.resolve(l.From)
		if err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}
		dst, err := p.resolve(l.To)
		if err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}
		if d := details[i]; d != nil && d.MovementType() != l.Type {
			return nil, fmt.Errorf("expand: %s leg carries %s detail", l.Type, d.MovementType())
		}

		m := domain.Movement{
			Type:         l.Type,
			Source:       src,
			Destination:  dst,
			Amount:       f.Amount,
			Currency:     f.Currency,
			DestAmount:   f.Amount,
			DestCurrency: f.Currency,
			Detail:       details[i],
		}
		if l.Amount == sideExchange {
			m.DestAmount = f.DestAmount
			m.DestCurrency = f.DestCurrency
		}
		movements = append(movements, m)
	}
	return movements, nil
}
