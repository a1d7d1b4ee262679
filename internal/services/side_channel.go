package services

import (
	"context"
	"log/slog"
)

// notify sends a best-effort notification. Failures are logged and counted, never returned.
func (d Deps) notify(ctx context.Context, recipientID, title, body string) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Notify(ctx, recipientID, title, body); err != nil {
		d.Metrics.IncSideChannelFailure("notify")
		d.Logger.WarnContext(ctx, "notification failed",
			slog.String("recipient_id", recipientID),
			slog.String("title", title),
			slog.Any("error", err))
	}
}

// publish pushes a best-effort live update.
func (d Deps) publish(ctx context.Context, topic string, payload any) {
	if d.Live == nil {
		return
	}
	if err := d.Live.Publish(ctx, topic, payload); err != nil {
		d.Metrics.IncSideChannelFailure("live")
		d.Logger.WarnContext(ctx, "live update failed",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
}
