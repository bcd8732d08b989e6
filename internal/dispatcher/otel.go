package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/motodash/cluster/internal/dispatcher"

// Outcome attribute values of dispatcher.actions.processed.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// instruments are the action metrics of one dispatcher, all keyed by the
// "action" attribute.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	latency   metric.Float64Histogram
}

// newInstruments registers the dispatcher metrics on the global meter,
// which is a no-op until an OTel provider is installed.
func newInstruments(d *Dispatcher) (instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		ins instruments
		err error
	)

	ins.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Actions waiting in a buffered queue"))
	if err != nil {
		return ins, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for action, buf := range d.buffers {
			o.ObserveInt64(ins.queueSize, int64(len(buf)), metric.WithAttributes(actionAttr(action)))
		}
		return nil
	}, ins.queueSize)
	if err != nil {
		return ins, fmt.Errorf("registering queue callback: %w", err)
	}

	ins.processed, err = m.Int64Counter("dispatcher.actions.processed",
		metric.WithDescription("Actions run to completion, by outcome"))
	if err != nil {
		return ins, fmt.Errorf("creating processed counter: %w", err)
	}
	ins.dropped, err = m.Int64Counter("dispatcher.actions.dropped",
		metric.WithDescription("Actions rejected because their queue was full"))
	if err != nil {
		return ins, fmt.Errorf("creating dropped counter: %w", err)
	}
	ins.latency, err = m.Float64Histogram("dispatcher.actions.latency",
		metric.WithDescription("Time spent in the action handler"),
		metric.WithUnit("ms"))
	if err != nil {
		return ins, fmt.Errorf("creating latency histogram: %w", err)
	}
	return ins, nil
}

func actionAttr(action string) attribute.KeyValue {
	return attribute.String("action", action)
}

// measured counts every run of h by outcome and records its latency.
func (ins instruments) measured(action string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)

		outcome := outcomeOK
		if err != nil {
			outcome = outcomeError
		}
		ctx := context.Background()
		ins.processed.Add(ctx, 1, metric.WithAttributes(actionAttr(action), attribute.String("outcome", outcome)))
		ins.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(actionAttr(action)))
		return result, err
	}
}

func (ins instruments) drop(action string) {
	ins.dropped.Add(context.Background(), 1, metric.WithAttributes(actionAttr(action)))
}
