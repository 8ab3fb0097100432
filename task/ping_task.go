package task

import (
	"context"
	"log/slog"
)

type Prober interface {
	Run(ctx context.Context) error
}

func NewPingTask(ctx context.Context, logger *slog.Logger, prober Prober) func() {
	return func() {
		// Failures are already written as error points.
		if err := prober.Run(ctx); err != nil {
			logger.Debug("ping task failed", slog.Any("error", err))
		}
	}
}
