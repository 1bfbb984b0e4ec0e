package fx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

// StaticOracle serves a fixed board of quotes. Used in development and tests.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	now    func() time.Time
}

func NewStaticOracle(quotes map[string]Quote) *StaticOracle {
	o := &StaticOracle{quotes: make(map[string]Quote, len(quotes)), now: time.Now}
	for src, q := range quotes {
		q.Source = src
		o.quotes[src] = q
	}
	return o
}

// ParseStaticRates reads "source:buy/sell" entries separated by commas,
// e.g. "official:850/870,blue:1000/1020".
func ParseStaticRates(s string) (map[string]Quote, error) {
	quotes := make(map[string]Quote)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		src, board, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("ParseStaticRates: %q: missing source", entry)
		}
		buyStr, sellStr, ok := strings.Cut(board, "/")
		if !ok {
			return nil, fmt.Errorf("ParseStaticRates: %q: want buy/sell", entry)
		}
		buy, err := decimal.NewFromString(strings.TrimSpace(buyStr))
		if err != nil {
			return nil, fmt.Errorf("ParseStaticRates: %q: buy: %w", entry, err)
		}
		sell, err := decimal.NewFromString(strings.TrimSpace(sellStr))
		if err != nil {
			return nil, fmt.Errorf("ParseStaticRates: %q: sell: %w", entry, err)
		}
		if !buy.IsPositive() || !sell.IsPositive() {
			return nil, fmt.Errorf("ParseStaticRates: %q: rates must be positive", entry)
		}
		src = strings.TrimSpace(src)
		quotes[src] = Quote{Source: src, Buy: buy, Sell: sell}
	}
	return quotes, nil
}

func (o *StaticOracle) GetRate(_ context.Context, source string) (*Quote, error) {
	o.mu.RLock()
	q, ok := o.quotes[source]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("StaticOracle: source %q: %w", source, domain.ErrRateUnavailable)
	}
	if q.AsOf.IsZero() {
		q.AsOf = o.now()
	}
	return &q, nil
}

// Set replaces the quote for source.
func (o *StaticOracle) Set(source string, buy, sell decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[source] = Quote{Source: source, Buy: buy, Sell: sell}
}
