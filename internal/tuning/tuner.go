package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trading-replay/internal/execution"
	"trading-replay/internal/ledger"
	"trading-replay/internal/marketdata"
	"trading-replay/internal/model"
	"trading-replay/internal/strategy"
	"trading-replay/internal/summary"
)

// Config holds the settings shared by every replay of a tuning job.
type Config struct {
	Engine        strategy.Config
	Limits        ledger.Limits
	Summary       summary.Config
	SlippageBps   float64
	RollingLength time.Duration
	RollingStep   time.Duration
}

// DefaultConfig returns 60-day rolling windows stepped weekly.
func DefaultConfig() Config {
	eng := strategy.DefaultConfig()
	return Config{
		Engine:        eng,
		Limits:        ledger.DefaultLimits(),
		Summary:       summary.Config{CommissionRate: 0.001, TradeNotional: eng.TradeNotional},
		RollingLength: 60 * 24 * time.Hour,
		RollingStep:   7 * 24 * time.Hour,
	}
}

// Job describes one tuning sweep.
type Job struct {
	Strategy          string
	Symbols           []string
	Grid              Grid
	TradeInterval     model.Interval
	IndicatorInterval model.Interval
	ExtraInterval     model.Interval // zero: extra indicators use the indicator series
	From, To          time.Time
}

// Run is the outcome of one parameter combination on one symbol.
type Run struct {
	Symbol         string            `json:"symbol"`
	Params         strategy.Params   `json:"params"`
	Traded         bool              `json:"traded"`
	Summary        summary.Summary   `json:"summary"`
	BaselineChange float64           `json:"baseline_change_pct"`
	Rolling        []summary.Window  `json:"rolling,omitempty"`
	Executions     []model.Execution `json:"executions,omitempty"`
}

// Report collects every run of a job.
type Report struct {
	Strategy string            `json:"strategy"`
	Runs     []Run             `json:"runs"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Ranked returns the traded runs ordered by profit % per trade, best first.
func (r Report) Ranked() []Run {
	var out []Run
	for _, run := range r.Runs {
		if run.Traded {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Summary.ProfitPctPerTrade > out[j].Summary.ProfitPctPerTrade
	})
	return out
}

// Tuner runs tuning jobs. Symbols are processed one after another; a
// symbol that fails is recorded and skipped.
type Tuner struct {
	loader    *marketdata.Loader
	registry  *strategy.Registry
	cfg       Config
	log       *slog.Logger
	observers []strategy.Observer
}

// New creates a tuner.
func New(loader *marketdata.Loader, registry *strategy.Registry, cfg Config, log *slog.Logger, observers ...strategy.Observer) *Tuner {
	if log == nil {
		log = slog.Default()
	}
	return &Tuner{
		loader:    loader,
		registry:  registry,
		cfg:       cfg,
		log:       log.With("component", "tuning"),
		observers: observers,
	}
}

type series struct {
	trade, ind, extra []model.Candle
}

// Run executes the job. It fails only if the job itself is invalid.
func (t *Tuner) Run(ctx context.Context, job Job) (Report, error) {
	combos, err := job.Grid.Combinations()
	if err != nil {
		return Report{}, err
	}
	for _, p := range combos {
		if _, err := t.registry.New(job.Strategy, p); err != nil {
			return Report{}, fmt.Errorf("params %s: %w", p, err)
		}
	}

	rep := Report{Strategy: job.Strategy, Failures: make(map[string]string)}
	for _, sym := range job.Symbols {
		data, err := t.load(ctx, job, sym)
		if err != nil {
			t.log.Error("symbol skipped", "symbol", sym, "error", err)
			rep.Failures[sym] = err.Error()
			continue
		}
		baseline := marketdata.Change(data.trade)
		for _, p := range combos {
			run, err := t.replay(ctx, job, sym, p, data)
			if err != nil {
				t.log.Error("replay failed", "symbol", sym, "params", p.String(), "error", err)
				rep.Failures[sym+" "+p.String()] = err.Error()
				continue
			}
			run.BaselineChange = baseline
			rep.Runs = append(rep.Runs, run)
		}
	}
	t.log.Info("tuning complete",
		"strategy", job.Strategy,
		"symbols", len(job.Symbols),
		"combinations", len(combos),
		"runs", len(rep.Runs),
		"failures", len(rep.Failures),
	)
	return rep, nil
}

func (t *Tuner) load(ctx context.Context, job Job, sym string) (series, error) {
	var s series
	var err error
	if s.trade, err = t.loader.Load(ctx, sym, job.TradeInterval, job.From, job.To); err != nil {
		return s, err
	}
	s.ind = s.trade
	if job.IndicatorInterval != job.TradeInterval {
		if s.ind, err = t.loader.Load(ctx, sym, job.IndicatorInterval, job.From, job.To); err != nil {
			return s, err
		}
	}
	if job.ExtraInterval != 0 {
		if s.extra, err = t.loader.Load(ctx, sym, job.ExtraInterval, job.From, job.To); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (t *Tuner) replay(ctx context.Context, job Job, sym string, p strategy.Params, data series) (Run, error) {
	strat, err := t.registry.New(job.Strategy, p)
	if err != nil {
		return Run{}, err
	}
	// fresh frames per combination: indicator columns depend on params
	trade := model.NewFrame(sym, job.TradeInterval, data.trade)
	ind := model.NewFrame(sym, job.IndicatorInterval, data.ind)
	var extra *model.Frame
	if data.extra != nil {
		extra = model.NewFrame(sym, job.ExtraInterval, data.extra)
	}
	bars, err := strategy.Prepare(strat, trade, ind, extra)
	if err != nil {
		return Run{}, err
	}

	opts := []strategy.Option{strategy.WithLogger(t.log)}
	for _, o := range t.observers {
		opts = append(opts, strategy.WithObserver(o))
	}
	eng := strategy.NewEngine(t.cfg.Engine, strat,
		execution.NewPaper(t.cfg.SlippageBps, t.log),
		ledger.New(t.cfg.Limits), ledger.NewExecutionLog(), opts...)
	res, err := eng.Replay(ctx, bars)
	if err != nil {
		return Run{}, err
	}

	run := Run{Symbol: sym, Params: p, Executions: res.Executions}
	sum, err := summary.Summarize(res.Executions, t.cfg.Summary)
	switch {
	case err == nil:
		run.Summary, run.Traded = sum, true
	case errors.Is(err, model.ErrNoTrades):
	default:
		return Run{}, err
	}

	if t.cfg.RollingLength > 0 && t.cfg.RollingStep > 0 {
		first, last := data.trade[0].TS, data.trade[len(data.trade)-1].TS
		run.Rolling, err = summary.Rolling(res.Executions, t.cfg.Summary, first, last, t.cfg.RollingLength, t.cfg.RollingStep)
		if err != nil {
			return Run{}, err
		}
	}
	return run, nil
}
