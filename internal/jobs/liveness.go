package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Sweeper interface {
	Sweep() int
}

// StartLivenessSweep drives one registry liveness cycle per interval until
// ctx is cancelled. A connection that stops answering pings is reaped within
// two intervals.
func StartLivenessSweep(ctx context.Context, registry Sweeper, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log = log.With().Str("job", "liveness_sweep").Logger()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if reaped := registry.Sweep(); reaped > 0 {
					log.Info().Int("reaped", reaped).Msg("liveness sweep reaped connections")
				}
			}
		}
	}()
}
