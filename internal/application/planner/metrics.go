package planner

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rezkam/tutorplan/internal/domain"
)

const meterName = "github.com/rezkam/tutorplan/internal/application/planner"

type serviceMetrics struct {
	tasksMaterialized metric.Int64Counter
	groupsCreated     metric.Int64Counter
	tasksDeleted      metric.Int64Counter
	cacheLookups      metric.Int64Counter
}

// newServiceMetrics registers the planner instruments on the global meter provider.
// Instrument creation failures are logged and leave a no-op instrument in place.
func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter(meterName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			slog.Warn("failed to create metric instrument", "name", name, "error", err)
		}
		return c
	}

	return &serviceMetrics{
		tasksMaterialized: counter("planner.tasks.materialized", "Tasks written by materialization"),
		groupsCreated:     counter("planner.groups.created", "Recurring groups created"),
		tasksDeleted:      counter("planner.tasks.deleted", "Tasks removed by single or group deletes"),
		cacheLookups:      counter("planner.cache.lookups", "Task list cache lookups by result"),
	}
}

func (m *serviceMetrics) recordMaterialized(ctx context.Context, tasks int, grouped bool, rt domain.RecurrenceType) {
	attrs := metric.WithAttributes(attribute.String("recurrence", string(rt)))
	if m.tasksMaterialized != nil {
		m.tasksMaterialized.Add(ctx, int64(tasks), attrs)
	}
	if grouped && m.groupsCreated != nil {
		m.groupsCreated.Add(ctx, 1, attrs)
	}
}

func (m *serviceMetrics) recordDeleted(ctx context.Context, tasks int, scope domain.DeleteScope) {
	if m.tasksDeleted != nil {
		m.tasksDeleted.Add(ctx, int64(tasks), metric.WithAttributes(attribute.String("scope", string(scope))))
	}
}

func (m *serviceMetrics) recordCacheLookup(ctx context.Context, result string) {
	if m.cacheLookups != nil {
		m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
