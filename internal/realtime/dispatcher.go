package realtime

import (
	"github.com/rs/zerolog"

	"teamdesk/internal/metrics"
	"teamdesk/internal/model"
)

// Dispatcher fans events out to registered connections. Delivery is
// at-most-once and best effort: closed transports are skipped, write errors
// are logged, nothing is queued for offline users.
type Dispatcher struct {
	registry *Registry
	log      zerolog.Logger
}

func NewDispatcher(registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      log.With().Str("component", "realtime_dispatcher").Logger(),
	}
}

func (d *Dispatcher) NotifyUser(userID int64, ev Event) int {
	return d.deliver(d.registry.forUser(userID), ev)
}

func (d *Dispatcher) NotifyByRole(role model.Role, ev Event) int {
	return d.deliver(d.registry.matching(func(c *Connection) bool { return c.Role == role }), ev)
}

// NotifyManagerTeam reaches the manager's own sessions and every connection
// whose manager is managerID.
func (d *Dispatcher) NotifyManagerTeam(managerID int64, ev Event) int {
	if managerID == 0 {
		return 0
	}
	return d.deliver(d.registry.matching(func(c *Connection) bool { return c.inTeam(managerID) }), ev)
}

func (d *Dispatcher) deliver(targets []*Connection, ev Event) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := ev.Encode()
	if err != nil {
		d.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
		return 0
	}

	delivered := 0
	for _, c := range targets {
		if !c.transport.Open() {
			metrics.TrackNotification(string(ev.Type), "skipped")
			continue
		}
		if err := c.transport.WriteText(payload); err != nil {
			metrics.TrackNotification(string(ev.Type), "failed")
			d.log.Warn().Err(err).Str("event", string(ev.Type)).Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("notification send failed")
			continue
		}
		metrics.TrackNotification(string(ev.Type), "delivered")
		delivered++
	}
	d.log.Debug().Str("event", string(ev.Type)).Int("targets", len(targets)).Int("delivered", delivered).Msg("event dispatched")
	return delivered
}
