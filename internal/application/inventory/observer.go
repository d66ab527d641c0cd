package inventory

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
)

// Nombres de métricas emitidas por el núcleo.
const (
	MetricOperations       = "stock_operations_total"
	MetricOperationSeconds = "stock_operation_duration"
	MetricLotsAllocated    = "stock_lots_allocated_total"
)

// LogObserver vuelca las métricas al log en nivel debug.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) IncCounter(name string, labels map[string]string) {
	o.Log.Debug().Str("metric", name).Fields(toFields(labels)).Msg("counter")
}

func (o LogObserver) ObserveDuration(name string, d time.Duration, labels map[string]string) {
	o.Log.Debug().Str("metric", name).Dur("elapsed", d).Fields(toFields(labels)).Msg("duration")
}

func toFields(labels map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// observe registra resultado y duración de una operación.
func observe(o Observer, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	labels := map[string]string{"operation": op, "outcome": outcome}
	o.IncCounter(MetricOperations, labels)
	o.ObserveDuration(MetricOperationSeconds, time.Since(started), map[string]string{"operation": op})
}
