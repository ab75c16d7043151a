// Package config loads infrastructure settings from the environment and
// trading parameters from a YAML run file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"trading-replay/internal/ledger"
	"trading-replay/internal/markethours"
	"trading-replay/internal/model"
	"trading-replay/internal/pairs"
	"trading-replay/internal/strategy"
	"trading-replay/internal/summary"
	"trading-replay/internal/tuning"
	"trading-replay/pkg/brokerapi"
)

// Env holds infrastructure configuration and credentials.
type Env struct {
	// Broker credentials, needed only for live execution
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPassword   string
	BrokerTOTPSecret string
	BrokerRootURL    string
	OrdersPerSecond  float64

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	PostgresDSN   string
	MetricsAddr   string
	LogLevel      string

	// Alerts
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string
	AlertLevel       string
}

// LoadEnv reads configuration from environment variables with defaults.
func LoadEnv() (*Env, error) {
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	ops, err := getEnvFloat("BROKER_ORDERS_PER_SECOND", 5)
	if err != nil {
		return nil, err
	}
	return &Env{
		BrokerAPIKey:     os.Getenv("BROKER_API_KEY"),
		BrokerClientCode: os.Getenv("BROKER_CLIENT_CODE"),
		BrokerPassword:   os.Getenv("BROKER_PASSWORD"),
		BrokerTOTPSecret: os.Getenv("BROKER_TOTP_SECRET"),
		BrokerRootURL:    getEnv("BROKER_ROOT_URL", ""),
		OrdersPerSecond:  ops,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       db,
		SQLitePath:    getEnv("SQLITE_PATH", "data/ledger.db"),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AlertWebhookURL:  os.Getenv("ALERT_WEBHOOK_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		AlertLevel:       getEnv("ALERT_LEVEL", "WARNING"),
	}, nil
}

// RequireBroker reports which broker credentials are missing.
func (e *Env) RequireBroker() error {
	for name, v := range map[string]string{
		"BROKER_API_KEY":     e.BrokerAPIKey,
		"BROKER_CLIENT_CODE": e.BrokerClientCode,
		"BROKER_PASSWORD":    e.BrokerPassword,
		"BROKER_TOTP_SECRET": e.BrokerTOTPSecret,
	} {
		if v == "" {
			return fmt.Errorf("%w: required env var %s not set", model.ErrValidation, name)
		}
	}
	return nil
}

// File is a YAML run file shared by the backtest and pairs commands.
type File struct {
	Strategy          string          `yaml:"strategy"`
	Params            strategy.Params `yaml:"params"`
	Symbols           []string        `yaml:"symbols"`
	TradeInterval     model.Interval  `yaml:"trade_interval"`
	IndicatorInterval model.Interval  `yaml:"indicator_interval"`
	ExtraInterval     model.Interval  `yaml:"extra_interval"`
	StartDate         time.Time       `yaml:"start_date"`
	EndDate           time.Time       `yaml:"end_date"`
	Lookback          int             `yaml:"lookback"`
	SlippageBps       float64         `yaml:"slippage_bps"`

	Limits  ledger.Limits  `yaml:",inline"`
	Summary summary.Config `yaml:",inline"`

	Grid            tuning.Grid `yaml:"grid"`
	RollingDays     int         `yaml:"rolling_window_days"`
	RollingStepDays int         `yaml:"rolling_step_days"`

	// Scheduled cycles skip ticks outside this session ("nse", or empty
	// for always open). Holidays add closed dates, YYYY-MM-DD.
	Session  string   `yaml:"session"`
	Holidays []string `yaml:"holidays"`

	Pairs       pairs.Config                    `yaml:"pairs"`
	Candidates  []model.PairCandidate           `yaml:"candidates"`
	Instruments map[string]brokerapi.Instrument `yaml:"instruments"`
}

// DefaultFile returns a file with every default filled in.
func DefaultFile() File {
	tc := tuning.DefaultConfig()
	return File{
		TradeInterval:     model.Interval1d,
		IndicatorInterval: model.Interval1d,
		Lookback:          tc.Engine.Lookback,
		Limits:            tc.Limits,
		Summary:           tc.Summary,
		RollingDays:       int(tc.RollingLength / (24 * time.Hour)),
		RollingStepDays:   int(tc.RollingStep / (24 * time.Hour)),
		Pairs:             pairs.DefaultConfig(),
	}
}

// LoadFile reads and validates a run file. Keys absent from the file keep
// their defaults.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a run file.
func Parse(raw []byte) (*File, error) {
	f := DefaultFile()
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", model.ErrValidation, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the fields every command relies on.
func (f *File) Validate() error {
	if err := f.Limits.Validate(); err != nil {
		return err
	}
	if f.Summary.TradeNotional <= 0 {
		return fmt.Errorf("%w: tlt_dollar must be > 0", model.ErrValidation)
	}
	if f.Summary.CommissionRate < 0 || f.Summary.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission_pct must be in [0, 1)", model.ErrValidation)
	}
	if f.SlippageBps < 0 {
		return fmt.Errorf("%w: slippage_bps must be >= 0", model.ErrValidation)
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && !f.StartDate.Before(f.EndDate) {
		return fmt.Errorf("%w: start_date must be before end_date", model.ErrValidation)
	}
	if f.RollingDays < 1 || f.RollingStepDays < 1 {
		return fmt.Errorf("%w: rolling window and step must be >= 1 day", model.ErrValidation)
	}
	if _, err := f.MarketSession(); err != nil {
		return err
	}
	return f.Pairs.Validate()
}

// MarketSession builds the trading session gate for scheduled cycles.
func (f *File) MarketSession() (markethours.Session, error) {
	s, err := markethours.Named(f.Session)
	if err != nil {
		return s, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if len(f.Holidays) > 0 && f.Session == "" {
		return s, fmt.Errorf("%w: holidays need a session", model.ErrValidation)
	}
	if err := s.AddHolidays(f.Holidays...); err != nil {
		return s, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return s, nil
}

// ValidateBacktest checks what run and tune need on top of Validate.
func (f *File) ValidateBacktest() error {
	if f.Strategy == "" {
		return fmt.Errorf("%w: strategy is required", model.ErrValidation)
	}
	if len(f.Symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", model.ErrValidation)
	}
	return nil
}

// TuningConfig assembles the replay, ledger and summary settings.
func (f *File) TuningConfig() tuning.Config {
	eng := strategy.DefaultConfig()
	eng.TradeNotional = f.Summary.TradeNotional
	if f.Lookback > 0 {
		eng.Lookback = f.Lookback
	}
	return tuning.Config{
		Engine:        eng,
		Limits:        f.Limits,
		Summary:       f.Summary,
		SlippageBps:   f.SlippageBps,
		RollingLength: time.Duration(f.RollingDays) * 24 * time.Hour,
		RollingStep:   time.Duration(f.RollingStepDays) * 24 * time.Hour,
	}
}

// Job builds a tuning job. With no grid, the job is a single replay of
// Params.
func (f *File) Job() tuning.Job {
	grid := tuning.Grid{}
	for k, v := range f.Params {
		grid[k] = []float64{v}
	}
	for k, vs := range f.Grid {
		grid[k] = vs
	}
	return tuning.Job{
		Strategy:          f.Strategy,
		Symbols:           f.Symbols,
		Grid:              grid,
		TradeInterval:     f.TradeInterval,
		IndicatorInterval: f.IndicatorInterval,
		ExtraInterval:     f.ExtraInterval,
		From:              f.StartDate,
		To:                f.EndDate,
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", model.ErrValidation, key, v)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", model.ErrValidation, key, v)
	}
	return f, nil
}
