package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/auth"
	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// metaFrom builds the ledger call metadata: the idempotency key header and the operator
// named in the token.
func metaFrom(r *http.Request) ledger.Meta {
	m := ledger.Meta{IdempotencyKey: r.Header.Get(IdempotencyKeyHeader)}
	if c, ok := auth.OperatorFromContext(r.Context()); ok {
		m.Actor = c.Operator
	}
	return m
}

func decode(r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v) == nil
}

func uuidVar(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	return id, err == nil
}

// fields collects validation failures for one request body.
type fields []FieldError

func (f *fields) add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Message: msg})
}

func (f *fields) amount(field, value string) decimal.Decimal {
	if value == "" {
		f.add(field, "required")
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		f.add(field, "must be a decimal string")
		return decimal.Zero
	}
	if !d.IsPositive() {
		f.add(field, "must be greater than 0")
	}
	return d
}

func (f *fields) currency(field, value string) domain.Currency {
	c := domain.Currency(value)
	if value == "" {
		f.add(field, "required")
	} else if !c.IsValid() {
		f.add(field, "must be ARS or USD")
	}
	return c
}

func (f *fields) uuid(field, value string) uuid.UUID {
	if value == "" {
		f.add(field, "required")
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		f.add(field, "must be a UUID")
	}
	return id
}

func (f *fields) box(field, value string) domain.BoxRef {
	if value == "" {
		f.add(field, "required")
		return domain.BoxRef{}
	}
	b, err := domain.ParseBoxRef(value)
	if err != nil {
		f.add(field, "must be master, admin or project:<id>")
	}
	return b
}

func (f *fields) date(field, value string, required bool) time.Time {
	if value == "" {
		if required {
			f.add(field, "required")
		}
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		f.add(field, "must be RFC 3339 or YYYY-MM-DD")
	}
	return t
}

func (f *fields) optionalDecimal(field, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		f.add(field, "must be a decimal string")
		return nil
	}
	return &d
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
