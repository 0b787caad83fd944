package events

import (
	"context"
	"log/slog"

	"github.com/rentwise/rentwise/internal/observability/logger"
	"github.com/rentwise/rentwise/internal/occupancy"
)

// LogEmitter records notifications in the log when no broker is configured
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log-only emitter
func NewLogEmitter(l *slog.Logger) *LogEmitter {
	if l == nil {
		l = slog.Default()
	}
	return &LogEmitter{logger: l.With(logger.Component("events"))}
}

// Notify logs the notification
func (e *LogEmitter) Notify(ctx context.Context, ownerID string, kind occupancy.EventKind) error {
	e.logger.InfoContext(ctx, "assignment event", logger.OwnerID(ownerID), logger.String("event", string(kind)))
	return nil
}
