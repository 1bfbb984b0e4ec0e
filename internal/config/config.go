package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int           `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int           `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBLockTimeout      time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"3s"`
	DBStatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"15s"`
	DBConflictRetries  int           `env:"DB_CONFLICT_RETRIES" envDefault:"2"`

	RateOracle            string        `env:"RATE_ORACLE" envDefault:"static"`
	RateOracleURL         string        `env:"RATE_ORACLE_URL" envDefault:"http://mock-rates:8081"`
	RateBuyPath           string        `env:"RATE_BUY_PATH" envDefault:"$.buy"`
	RateSellPath          string        `env:"RATE_SELL_PATH" envDefault:"$.sell"`
	RateAsOfPath          string        `env:"RATE_ASOF_PATH" envDefault:"$.updated_at"`
	RateMaxAge            time.Duration `env:"RATE_MAX_AGE" envDefault:"15m"`
	RateRequestsPerSecond float64       `env:"RATE_REQUESTS_PER_SECOND" envDefault:"5"`
	RateTimeout           time.Duration `env:"RATE_TIMEOUT" envDefault:"5s"`
	StaticRates           string        `env:"STATIC_RATES" envDefault:"official:1000/1050,blue:1150/1200"`

	LoanCancellationPolicy string          `env:"LOAN_CANCELLATION_POLICY" envDefault:"retain"`
	LoanRepaymentTarget    string          `env:"LOAN_REPAYMENT_TARGET" envDefault:"lender"`
	LoanLateFeePct         decimal.Decimal `env:"LOAN_LATE_FEE_PCT" envDefault:"0"`

	AuditConcurrency int  `env:"AUDIT_CONCURRENCY" envDefault:"4"`
	MetricsEnabled   bool `env:"METRICS_ENABLED" envDefault:"true"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.RateOracle {
	case "static", "http":
	default:
		return fmt.Errorf("RATE_ORACLE %q: want static or http", c.RateOracle)
	}
	if c.RateOracle == "http" && c.RateOracleURL == "" {
		return fmt.Errorf("RATE_ORACLE_URL is required for the http oracle")
	}
	if c.RateRequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_REQUESTS_PER_SECOND must be positive")
	}
	return nil
}
