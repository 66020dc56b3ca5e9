package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/honest0623-ship-it/IDK-Voca/internal/session"
)

const (
	flushTimeout = 10 * time.Second
)

// StartFlushRetrySchedule periodically walks the session registry and
// re-flushes sessions whose buffered writes could not be committed, so a
// throttled or briefly unavailable backend never loses graded answers.
func StartFlushRetrySchedule(ctx context.Context, registry *session.Registry, interval time.Duration, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic", "error", r)
		}
	}()

	log.InfoContext(ctx, "flush retry schedule started")
	defer log.InfoContext(ctx, "flush retry schedule stopped")
	runIn := time.After(time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case <-runIn:
			runIn = time.After(interval)

			dirty := registry.Dirty()
			if len(dirty) == 0 {
				continue
			}

			log.DebugContext(ctx, "flush retry execution started", "sessions", len(dirty))
			for _, s := range dirty {
				ctx, cancel := context.WithTimeout(ctx, flushTimeout)

				if err := s.Flush(ctx); err != nil {
					log.ErrorContext(ctx, "failed to flush session", "error", err, "username", s.Username())
				}
				cancel()
			}
			log.DebugContext(ctx, "flush retry execution finished")
		}
	}
}
