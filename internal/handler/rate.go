package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/fx"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

type rateService interface {
	GetRate(ctx context.Context, source string) (*fx.Quote, error)
	Convert(ctx context.Context, amount decimal.Decimal, from, to domain.Currency, source string) (*fx.Conversion, error)
}

type RateHandler struct {
	rates rateService
}

func NewRateHandler(rates rateService) *RateHandler {
	return &RateHandler{rates: rates}
}

type rateResponse struct {
	Source    string `json:"source"`
	Buy       string `json:"buy"`
	Sell      string `json:"sell"`
	AsOf      string `json:"as_of"`
	Timestamp string `json:"timestamp"`
}

func (h *RateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	quote, err := h.rates.GetRate(r.Context(), source)
	if err != nil {
		logging.FromContext(r.Context()).Warn("rate lookup failed", "source", source, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, rateResponse{
		Source:    quote.Source,
		Buy:       quote.Buy.String(),
		Sell:      quote.Sell.String(),
		AsOf:      quote.AsOf.UTC().Format(time.RFC3339),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type quoteResponse struct {
	Source       string `json:"source"`
	From         string `json:"from"`
	To           string `json:"to"`
	SourceAmount string `json:"source_amount"`
	DestAmount   string `json:"dest_amount"`
	Formatted    string `json:"formatted"`
	Rate         string `json:"rate"`
	Side         string `json:"side"`
	QuotedAt     string `json:"quoted_at"`
}

// Quote prices a conversion without posting it.
func (h *RateHandler) Quote(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	q := r.URL.Query()

	var f fields
	amount := f.amount("amount", q.Get("amount"))
	from := f.currency("from", q.Get("from"))
	to := f.currency("to", q.Get("to"))
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	c, err := h.rates.Convert(r.Context(), amount, from, to, source)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, quoteResponse{
		Source:       c.Source,
		From:         string(c.From),
		To:           string(c.To),
		SourceAmount: c.SourceAmount.String(),
		DestAmount:   c.DestAmount.String(),
		Formatted:    c.To.Format(c.DestAmount),
		Rate:         c.Rate.String(),
		Side:         string(c.Side),
		QuotedAt:     c.QuotedAt.UTC().Format(time.RFC3339),
	})
}
