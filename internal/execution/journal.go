package execution

import (
	"context"
	"log/slog"

	"trading-replay/internal/model"
)

// Journaled records every confirmed fill of the wrapped executor to sinks
// (trade log tables, streams, websocket hub). A sink failure is logged and
// does not undo the fill.
type Journaled struct {
	next  model.Executor
	sinks []model.FillSink
	log   *slog.Logger
}

// NewJournaled wraps next.
func NewJournaled(next model.Executor, log *slog.Logger, sinks ...model.FillSink) *Journaled {
	if log == nil {
		log = slog.Default()
	}
	return &Journaled{next: next, sinks: sinks, log: log.With(slog.String("component", "journal"))}
}

// Execute delegates to the wrapped executor and records the fill.
func (j *Journaled) Execute(ctx context.Context, req model.OrderRequest) (model.Fill, error) {
	fill, err := j.next.Execute(ctx, req)
	if err != nil {
		return fill, err
	}
	for _, s := range j.sinks {
		if err := s.RecordFill(ctx, fill); err != nil {
			j.log.Warn("fill sink failed",
				slog.String("order_id", fill.OrderID),
				slog.String("symbol", fill.Symbol),
				slog.Any("err", err),
			)
		}
	}
	return fill, nil
}
