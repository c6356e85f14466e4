package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/depotcharge/core/events"
	coremetrics "github.com/kilianp07/depotcharge/core/metrics"
	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/infra/logger"
	"github.com/kilianp07/depotcharge/internal/eventbus"
)

// StartEventCollector subscribes to the event bus, forwards attempt events to
// sinks implementing AttemptRecorder and logs days that left the main
// formulation. It stops when ctx is cancelled or the bus is closed; the
// returned channel is closed once the collector has drained.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				handle(ev, sink, log)
			}
		}
	}()
	return done
}

func handle(ev any, sink coremetrics.MetricsSink, log logger.Logger) {
	switch e := ev.(type) {
	case events.AttemptEvent:
		if r, ok := sink.(coremetrics.AttemptRecorder); ok {
			if err := r.RecordAttempt(coremetrics.AttemptRecord{
				Category: e.Category,
				Date:     e.Date,
				Level:    e.Level,
				Failed:   e.Err != nil,
				Duration: e.Duration,
			}); err != nil {
				log.Warnf("record attempt: %v", err)
			}
		}
	case events.DayEvent:
		if e.Level != model.LevelMain && e.Level != model.LevelEmpty {
			log.Warnf("%s %s settled at %s: %s", e.Date.Format(time.DateOnly), e.Category, e.Level, e.Note)
		}
	case events.RangeEvent:
		if e.Err != nil {
			log.Errorf("%s range aborted after %d days: %v", e.Category, e.Days, e.Err)
		}
	}
}
