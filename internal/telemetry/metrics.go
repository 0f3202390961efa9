// Package telemetry defines the domain counters exported through OpenTelemetry.
package telemetry

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/xenking/bistro"

// Metrics groups the business counters recorded by domain services.
type Metrics struct {
	ordersCreated      metric.Int64Counter
	orderTransitions   metric.Int64Counter
	orderRevenue       metric.Float64Counter
	discountsApplied   metric.Int64Counter
	discountsRejected  metric.Int64Counter
	ratingsSubmitted   metric.Int64Counter
	reportCacheLookups metric.Int64Counter
}

// New registers all counters on the meter obtained from mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.ordersCreated, err = meter.Int64Counter("bistro.orders.created",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	if m.orderTransitions, err = meter.Int64Counter("bistro.orders.transitions",
		metric.WithDescription("Order status transitions by target status"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.transitions")
	}
	if m.orderRevenue, err = meter.Float64Counter("bistro.orders.revenue",
		metric.WithDescription("Sum of frozen order totals at creation"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.revenue")
	}
	if m.discountsApplied, err = meter.Int64Counter("bistro.discounts.applied",
		metric.WithDescription("Successful discount code applications"),
	); err != nil {
		return nil, errors.Wrap(err, "discounts.applied")
	}
	if m.discountsRejected, err = meter.Int64Counter("bistro.discounts.rejected",
		metric.WithDescription("Rejected discount code applications by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "discounts.rejected")
	}
	if m.ratingsSubmitted, err = meter.Int64Counter("bistro.ratings.submitted",
		metric.WithDescription("Dish ratings created or updated"),
	); err != nil {
		return nil, errors.Wrap(err, "ratings.submitted")
	}
	if m.reportCacheLookups, err = meter.Int64Counter("bistro.reports.cache_lookups",
		metric.WithDescription("Report cache lookups by result"),
	); err != nil {
		return nil, errors.Wrap(err, "reports.cache_lookups")
	}
	return &m, nil
}

// Nop returns Metrics backed by a no-op provider.
func Nop() *Metrics {
	m, err := New(noop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) OrderCreated(ctx context.Context, total float64) {
	m.ordersCreated.Add(ctx, 1)
	m.orderRevenue.Add(ctx, total)
}

func (m *Metrics) OrderTransitioned(ctx context.Context, status string) {
	m.orderTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) DiscountApplied(ctx context.Context) {
	m.discountsApplied.Add(ctx, 1)
}

func (m *Metrics) DiscountRejected(ctx context.Context, reason string) {
	m.discountsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RatingSubmitted(ctx context.Context, update bool) {
	m.ratingsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("update", update)))
}

func (m *Metrics) ReportCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
