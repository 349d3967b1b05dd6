package attendance

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trezcool/masomo-attendance/core/attendance"

var tracer = otel.Tracer(instrumentationName)

var (
	savesCnt metric.Int64Counter
	staleCnt metric.Int64Counter
)

func init() {
	_ = initMetrics()
}

func initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error
	if savesCnt, err = meter.Int64Counter("attendance.saves", metric.WithDescription("Attendance save attempts by outcome")); err != nil {
		return err
	}
	staleCnt, err = meter.Int64Counter("attendance.loads.stale", metric.WithDescription("Load results discarded because the session changed"))
	return err
}

func keyAttributes(key SessionKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("class_id", key.ClassID),
		attribute.String("date", key.Date),
	}
}

func countSave(ctx context.Context, outcome string) {
	if savesCnt != nil {
		savesCnt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func countStale(ctx context.Context) {
	if staleCnt != nil {
		staleCnt.Add(ctx, 1)
	}
}
