package sync

import (
	"context"

	"github.com/goliatone/go-bankfeeds/core"
	glog "github.com/goliatone/go-logger/glog"
)

// LoggingHook writes worker lifecycle events to a glog logger.
type LoggingHook struct {
	Logger core.Logger
}

func (h LoggingHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Debug("sync job started", eventFields(event)...)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Info("sync job completed", eventFields(event)...)
}

func (h LoggingHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Error("sync job dead-lettered", eventFields(event)...)
}

func (h LoggingHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.logger(ctx).Warn("sync job scheduled for retry", eventFields(event)...)
}

func (h LoggingHook) logger(ctx context.Context) core.Logger {
	return glog.Ensure(h.Logger).WithContext(ctx)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{
		"account_id", accountIDFrom(event.Message),
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay.String())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	return fields
}

var _ core.JobWorkerHook = LoggingHook{}
