package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

// HTTPOracleConfig locates the buy, sell and as-of values inside the rate source's JSON
// payload with JSONPath expressions.
type HTTPOracleConfig struct {
	BaseURL           string
	BuyPath           string
	SellPath          string
	AsOfPath          string
	MaxAge            time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// HTTPOracle reads quotes from GET {BaseURL}/rates/{source}.
type HTTPOracle struct {
	cfg        HTTPOracleConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

func NewHTTPOracle(cfg HTTPOracleConfig) *HTTPOracle {
	if cfg.BuyPath == "" {
		cfg.BuyPath = "$.buy"
	}
	if cfg.SellPath == "" {
		cfg.SellPath = "$.sell"
	}
	if cfg.AsOfPath == "" {
		cfg.AsOfPath = "$.updated_at"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HTTPOracle{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

func (o *HTTPOracle) GetRate(ctx context.Context, source string) (*Quote, error) {
	log := logging.FromContext(ctx)

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("HTTPOracle: throttled: %v: %w", err, domain.ErrRateUnavailable)
	}

	endpoint := o.cfg.BaseURL + "/rates/" + url.PathEscape(source)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPOracle: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPOracle: send: %v: %w", err, domain.ErrRateUnavailable)
	}
	defer resp.Body.Close()

	log.Debug("rate source response received",
		"source", source,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTPOracle: unexpected status %d: %s: %w", resp.StatusCode, string(body), domain.ErrRateUnavailable)
	}

	var payload any
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("HTTPOracle: decode: %v: %w", err, domain.ErrRateUnavailable)
	}

	q, err := o.extract(source, payload)
	if err != nil {
		return nil, fmt.Errorf("HTTPOracle: %w", err)
	}

	if o.cfg.MaxAge > 0 && o.now().Sub(q.AsOf) > o.cfg.MaxAge {
		return nil, fmt.Errorf("HTTPOracle: quote from %s is older than %s: %w",
			q.AsOf.Format(time.RFC3339), o.cfg.MaxAge, domain.ErrRateUnavailable)
	}
	return q, nil
}

func (o *HTTPOracle) extract(source string, payload any) (*Quote, error) {
	buy, err := decimalAt(o.cfg.BuyPath, payload)
	if err != nil {
		return nil, err
	}
	sell, err := decimalAt(o.cfg.SellPath, payload)
	if err != nil {
		return nil, err
	}
	asOf, err := timeAt(o.cfg.AsOfPath, payload)
	if err != nil {
		return nil, err
	}
	return &Quote{Source: source, Buy: buy, Sell: sell, AsOf: asOf}, nil
}

func valueAt(path string, payload any) (any, error) {
	v, err := jsonpath.Get(path, payload)
	if err != nil {
		return nil, fmt.Errorf("path %q: %v: %w", path, err, domain.ErrRateUnavailable)
	}
	// filter expressions come back as a list; keep the first match
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("path %q: no match: %w", path, domain.ErrRateUnavailable)
		}
		v = list[0]
	}
	return v, nil
}

func decimalAt(path string, payload any) (decimal.Decimal, error) {
	v, err := valueAt(path, payload)
	if err != nil {
		return decimal.Zero, err
	}

	var d decimal.Decimal
	switch x := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case string:
		d, err = decimal.NewFromString(x)
	case float64:
		d = decimal.NewFromFloat(x)
	default:
		err = fmt.Errorf("unexpected %T", v)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("path %q: %v: %w", path, err, domain.ErrRateUnavailable)
	}
	return d, nil
}

func timeAt(path string, payload any) (time.Time, error) {
	v, err := valueAt(path, payload)
	if err != nil {
		return time.Time{}, err
	}

	switch x := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return time.Time{}, fmt.Errorf("path %q: %v: %w", path, err, domain.ErrRateUnavailable)
		}
		return t, nil
	case json.Number:
		secs, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("path %q: %v: %w", path, err, domain.ErrRateUnavailable)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("path %q: unexpected %T: %w", path, v, domain.ErrRateUnavailable)
}
