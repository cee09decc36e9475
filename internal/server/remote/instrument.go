package remote

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/metrics"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mailvault/remote"

// instrumented records a span and Prometheus metrics around each call of
// the wrapped gateway.
type instrumented struct {
	next   Gateway
	tracer trace.Tracer
}

// Instrument wraps gw with tracing and metrics.
func Instrument(gw Gateway) Gateway {
	return &instrumented{next: gw, tracer: otel.Tracer(tracerName)}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrAuthRejected):
		return "auth_rejected"
	default:
		return "remote_error"
	}
}

func (g *instrumented) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "remote."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	metrics.RemoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.RemoteCallsTotal.WithLabelValues(op, resultLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultLabel(err))
	}
	return err
}

func (g *instrumented) Login(ctx context.Context, cred models.Credential) ([]models.Calendar, error) {
	var cals []models.Calendar
	err := g.observe(ctx, "login", func(ctx context.Context) error {
		var err error
		cals, err = g.next.Login(ctx, cred)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("calendars", len(cals)))
		return err
	})
	return cals, err
}

func (g *instrumented) ListInboxMessages(ctx context.Context, cred models.Credential, limit int) ([]Message, error) {
	var msgs []Message
	err := g.observe(ctx, "list_inbox", func(ctx context.Context) error {
		var err error
		msgs, err = g.next.ListInboxMessages(ctx, cred, limit)
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("limit", limit), attribute.Int("messages", len(msgs)))
		return err
	})
	return msgs, err
}

func (g *instrumented) ListCalendarEvents(ctx context.Context, cred models.Credential, calendarID string, w Window) (*CalendarView, error) {
	var view *CalendarView
	err := g.observe(ctx, "list_events", func(ctx context.Context) error {
		var err error
		view, err = g.next.ListCalendarEvents(ctx, cred, calendarID, w)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("window.start", w.Start.Format(time.RFC3339)),
			attribute.String("window.end", w.End.Format(time.RFC3339)),
		)
		return err
	})
	return view, err
}
