// Package notification delivers trading alerts (losing closes, execution
// failures, pair stops) to external channels.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trading-replay/internal/model"
)

// Level is the severity of an alert.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert is one notification.
type Alert struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	TS      time.Time `json:"ts"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Send(_ context.Context, a Alert) error {
	n.log.Info(a.Title, "level", string(a.Level), "message", a.Message)
	return nil
}

const (
	queueSize   = 256
	sendTimeout = 10 * time.Second
)

// Dispatcher queues alerts and sends them to every notifier from a single
// goroutine, so observers never block on the network. Alerts beyond the
// queue capacity are dropped. It implements strategy.Observer and
// pairs.Observer.
type Dispatcher struct {
	notifiers []Notifier
	minLevel  Level
	log       *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan Alert
	done   chan struct{}
}

// NewDispatcher starts a dispatcher. Alerts below minLevel are discarded;
// an empty minLevel keeps everything.
func NewDispatcher(minLevel Level, log *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		notifiers: notifiers,
		minLevel:  minLevel,
		log:       log.With("component", "alerts"),
		now:       time.Now,
		queue:     make(chan Alert, queueSize),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for a := range d.queue {
		for _, n := range d.notifiers {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			if err := n.Send(ctx, a); err != nil {
				d.log.Warn("alert not delivered", "title", a.Title, "error", err)
			}
			cancel()
		}
	}
}

// Close stops accepting alerts and waits for the queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func rank(l Level) int {
	switch l {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	}
	return 0
}

// Notify queues an alert without blocking.
func (d *Dispatcher) Notify(a Alert) {
	if rank(a.Level) < rank(d.minLevel) {
		return
	}
	if a.TS.IsZero() {
		a.TS = d.now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- a:
	default:
		d.log.Warn("alert queue full, dropping", "title", a.Title)
	}
}

// OnExecution implements strategy.Observer.
func (d *Dispatcher) OnExecution(string, model.Execution) {}

// OnOrderClosed alerts on every close; losing closes are warnings.
func (d *Dispatcher) OnOrderClosed(strategy string, o model.OpenOrder) {
	level := LevelInfo
	var pct float64
	if o.ProfitPct != nil {
		pct = *o.ProfitPct
	}
	if pct < 0 {
		level = LevelWarning
	}
	d.Notify(Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s closed %s %s", strategy, o.Side, o.Symbol),
		Message: fmt.Sprintf("%s at %.2f%% (order %s)", o.CloseReason, pct*100, o.ID),
	})
}

// OnExecutionError alerts on failed orders. The engine reports only executor
// failures here, so every one is critical.
func (d *Dispatcher) OnExecutionError(strategy, symbol string, err error) {
	d.Notify(Alert{
		Level:   LevelCritical,
		Title:   fmt.Sprintf("%s order failed on %s", strategy, symbol),
		Message: err.Error(),
	})
}

// OnReplay implements strategy.Observer.
func (d *Dispatcher) OnReplay(string, string, int, time.Duration) {}

// OnPairTransition alerts on pair entries and exits; stops are warnings.
func (d *Dispatcher) OnPairTransition(p model.PairPosition, from model.PairStatus) {
	level := LevelInfo
	if p.Status == model.PairUpperStopped || p.Status == model.PairLowerStopped {
		level = LevelWarning
	}
	d.Notify(Alert{
		Level:   level,
		Title:   fmt.Sprintf("pair %s/%s %s", p.SymbolY, p.SymbolX, p.Status),
		Message: fmt.Sprintf("%s -> %s, spread %.4f, bands [%.4f, %.4f]", from, p.Status, p.Spread, p.LowerBand, p.UpperBand),
	})
}
