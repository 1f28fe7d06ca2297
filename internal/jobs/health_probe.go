package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusSetter interface {
	SetServingStatus(service string, status healthv1.HealthCheckResponse_ServingStatus)
}

// StartHealthProbe pings storage once immediately and then every interval,
// publishing the result on every named health entry.
func StartHealthProbe(ctx context.Context, store Pinger, health StatusSetter, interval, timeout time.Duration, log zerolog.Logger, services ...string) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if len(services) == 0 {
		services = []string{""}
	}
	log = log.With().Str("job", "health_probe").Logger()

	probe := func(last healthv1.HealthCheckResponse_ServingStatus) healthv1.HealthCheckResponse_ServingStatus {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		err := store.Ping(tickCtx)
		cancel()

		next := healthv1.HealthCheckResponse_SERVING
		if err != nil {
			next = healthv1.HealthCheckResponse_NOT_SERVING
		}
		if next != last {
			if err != nil {
				log.Warn().Err(err).Msg("storage unhealthy")
			} else {
				log.Info().Msg("storage healthy")
			}
		}
		for _, service := range services {
			health.SetServingStatus(service, next)
		}
		return next
	}

	last := probe(healthv1.HealthCheckResponse_UNKNOWN)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				last = probe(last)
			}
		}
	}()
}
