// Package worker reacts to budget events: it rebuilds the affected user's
// timeline, surfaces forecast warnings, and optionally mirrors the timeline
// to Google Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/budget"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// TimelineExporter mirrors a rebuilt timeline to an external destination.
type TimelineExporter interface {
	ExportTimeline(ctx context.Context, userID string, tl core.Timeline) error
}

type EventWorker struct {
	store          budget.Store
	exporter       TimelineExporter
	forecastMonths int
	now            func() time.Time
}

func NewEventWorker(store budget.Store, exporter TimelineExporter, forecastMonths int) *EventWorker {
	if forecastMonths < 1 {
		forecastMonths = 6
	}
	return &EventWorker{
		store:          store,
		exporter:       exporter,
		forecastMonths: forecastMonths,
		now:            time.Now,
	}
}

// HandleEvent processes one budget event. A rebuild failure caused by data
// (unknown user, invalid month) is logged and swallowed so the message is not
// requeued forever; anything else propagates so the delivery is retried.
func (w *EventWorker) HandleEvent(ctx context.Context, msg *amqp.BudgetEventMessage) error {
	fields := log.NewFields().
		WithUser(msg.UserID).
		WithOperation(log.OpRebuild).
		WithComponent(log.ComponentWorker)
	fields[log.FieldEventKind] = msg.Kind
	fields[log.FieldMonthKey] = msg.MonthKey
	slog.InfoContext(ctx, "Processing budget event", fields.ToSlice()...)

	through := core.MonthKeyOf(w.now())
	if msg.MonthKey != "" {
		if parsed, err := core.ParseMonthKey(msg.MonthKey); err == nil && parsed > through {
			through = parsed
		}
	}

	tl, err := budget.BuildTimeline(ctx, w.store, msg.UserID, through)
	if err != nil {
		var be *core.BudgetError
		if errors.As(err, &be) {
			// The event described state that no longer holds; requeueing
			// would replay the same failure.
			slog.WarnContext(ctx, "Timeline rebuild rejected",
				log.FieldUserID, msg.UserID,
				log.FieldErrorCode, be.Code,
				log.FieldMonthKey, be.MonthKey)
			return nil
		}
		return fmt.Errorf("rebuild timeline for %s: %w", msg.UserID, err)
	}

	slog.InfoContext(ctx, "Timeline rebuilt",
		log.FieldUserID, msg.UserID,
		"through", through,
		"months", len(tl.Months))

	w.logForecastWarnings(ctx, msg.UserID)

	if w.exporter != nil {
		if err := w.exporter.ExportTimeline(ctx, msg.UserID, tl); err != nil {
			return fmt.Errorf("export timeline for %s: %w", msg.UserID, err)
		}
	}

	return nil
}

// logForecastWarnings runs the forecaster and logs months projected to go
// negative. Forecast problems never fail event handling.
func (w *EventWorker) logForecastWarnings(ctx context.Context, userID string) {
	result, err := budget.Forecast(ctx, w.store, userID, w.forecastMonths, w.now())
	if err != nil {
		slog.ErrorContext(ctx, "Forecast failed",
			log.FieldUserID, userID,
			log.FieldError, err,
			log.FieldOperation, log.OpForecast)
		return
	}
	for _, mk := range result.Warnings.NegativeMonths {
		slog.WarnContext(ctx, "Forecast projects negative net",
			log.FieldUserID, userID,
			log.FieldMonthKey, mk)
	}
}
