package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/fx"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

// board is the mock rate source. Quotes are served in the shape the HTTP oracle's default
// JSONPath expressions expect.
type board struct {
	mu     sync.RWMutex
	quotes map[string]fx.Quote
}

type quotePayload struct {
	Source    string          `json:"source"`
	Buy       decimal.Decimal `json:"buy"`
	Sell      decimal.Decimal `json:"sell"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (b *board) get(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	b.mu.RLock()
	q, ok := b.quotes[source]
	b.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown source"})
		return
	}
	writeJSON(w, http.StatusOK, quotePayload{Source: source, Buy: q.Buy, Sell: q.Sell, UpdatedAt: q.AsOf})
}

// set lets a developer move a rate while the API is running.
func (b *board) set(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	var p quotePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !p.Buy.IsPositive() || !p.Sell.IsPositive() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "want positive buy and sell"})
		return
	}
	q := fx.Quote{Source: source, Buy: p.Buy, Sell: p.Sell, AsOf: time.Now().UTC()}
	b.mu.Lock()
	b.quotes[source] = q
	b.mu.Unlock()
	slog.Info("rate updated", "source", source, "buy", q.Buy, "sell", q.Sell)
	writeJSON(w, http.StatusOK, quotePayload{Source: source, Buy: q.Buy, Sell: q.Sell, UpdatedAt: q.AsOf})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func main() {
	_ = godotenv.Load()
	logging.Init("mock-rates", "info", os.Getenv("APP_ENV"))

	table := os.Getenv("STATIC_RATES")
	if table == "" {
		table = "official:1000/1050,blue:1150/1200"
	}
	quotes, err := fx.ParseStaticRates(table)
	if err != nil {
		slog.Error("bad STATIC_RATES", "error", err)
		os.Exit(1)
	}
	now := time.Now().UTC()
	for src, q := range quotes {
		q.AsOf = now
		quotes[src] = q
	}
	b := &board{quotes: quotes}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/rates/{source}", b.get).Methods(http.MethodGet)
	r.HandleFunc("/rates/{source}", b.set).Methods(http.MethodPut)

	slog.Info("mock rate source started", "addr", ":8081", "sources", len(quotes))
	if err := http.ListenAndServe(":8081", r); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
