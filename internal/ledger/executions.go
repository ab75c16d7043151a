package ledger

import (
	"fmt"
	"sync"
	"time"

	"trading-replay/internal/model"
)

// ExecutionLog is the append-only record of fills. Entries for a symbol must
// be non-decreasing in time.
type ExecutionLog struct {
	mu    sync.RWMutex
	execs []model.Execution
	last  map[string]time.Time
}

// NewExecutionLog creates an empty log.
func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{
		execs: make([]model.Execution, 0, 128),
		last:  make(map[string]time.Time),
	}
}

// Append adds an execution. Out-of-order entries are rejected.
func (x *ExecutionLog) Append(e model.Execution) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if prev, ok := x.last[e.Symbol]; ok && e.Time.Before(prev) {
		return fmt.Errorf("%w: %s execution at %s precedes %s",
			model.ErrValidation, e.Symbol, e.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
	}
	x.execs = append(x.execs, e)
	x.last[e.Symbol] = e.Time
	return nil
}

// Len returns the number of executions.
func (x *ExecutionLog) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.execs)
}

// All returns a snapshot of every execution in append order.
func (x *ExecutionLog) All() []model.Execution {
	return x.Since(0)
}

// Since returns the executions appended at or after position n.
func (x *ExecutionLog) Since(n int) []model.Execution {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if n >= len(x.execs) {
		return nil
	}
	out := make([]model.Execution, len(x.execs)-n)
	copy(out, x.execs[n:])
	return out
}

// ForSymbol returns the executions for symbol in append order.
func (x *ExecutionLog) ForSymbol(symbol string) []model.Execution {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []model.Execution
	for _, e := range x.execs {
		if e.Symbol == symbol {
			out = append(out, e)
		}
	}
	return out
}
