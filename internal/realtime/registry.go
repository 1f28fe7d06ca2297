package realtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"teamdesk/internal/metrics"
	"teamdesk/internal/model"
)

var (
	ErrAlreadyRegistered = errors.New("realtime: connection already registered")
	ErrClosed            = errors.New("realtime: transport closed")
)

// Transport is one live channel to a client. Implementations must allow
// WriteText, Ping and Close to be called from different goroutines.
type Transport interface {
	WriteText(data []byte) error
	Ping() error
	Open() bool
	Close() error
}

// Connection is an authenticated transport.
type Connection struct {
	ID        string
	UserID    int64
	Role      model.Role
	ManagerID int64

	transport    Transport
	awaitingPong atomic.Bool
}

func NewConnection(t Transport, userID int64, role model.Role, managerID int64) *Connection {
	return &Connection{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		ManagerID: managerID,
		transport: t,
	}
}

// Pong records a liveness reply from the client.
func (c *Connection) Pong() {
	c.awaitingPong.Store(false)
}

func (c *Connection) inTeam(managerID int64) bool {
	return c.ManagerID == managerID || c.UserID == managerID
}

// Registry indexes live connections by user id.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64][]*Connection
	byID   map[string]*Connection
	log    zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		byUser: make(map[int64][]*Connection),
		byID:   make(map[string]*Connection),
		log:    log.With().Str("component", "realtime_registry").Logger(),
	}
}

func (r *Registry) Register(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return ErrAlreadyRegistered
	}
	c.awaitingPong.Store(false)
	r.byID[c.ID] = c
	r.byUser[c.UserID] = append(r.byUser[c.UserID], c)
	metrics.RealtimeConnections.Inc()
	r.log.Debug().Str("conn_id", c.ID).Int64("user_id", c.UserID).Str("role", string(c.Role)).Msg("connection registered")
	return nil
}

// Unregister removes c and reports whether it was registered.
func (r *Registry) Unregister(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return false
	}
	delete(r.byID, c.ID)

	conns := r.byUser[c.UserID]
	for i, candidate := range conns {
		if candidate == c {
			conns = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byUser, c.UserID)
	} else {
		r.byUser[c.UserID] = conns
	}
	metrics.RealtimeConnections.Dec()
	r.log.Debug().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("connection unregistered")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// UserConnections is the number of live connections held by userID.
func (r *Registry) UserConnections(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) forUser(userID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Connection(nil), r.byUser[userID]...)
}

func (r *Registry) matching(match func(*Connection) bool) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, c := range r.byID {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Sweep runs one liveness cycle. Connections that left the previous ping
// unanswered are closed and unregistered; the rest are pinged again. Ping
// failures surface on the next cycle. Returns the number reaped.
func (r *Registry) Sweep() int {
	reaped := 0
	for _, c := range r.matching(func(*Connection) bool { return true }) {
		if c.awaitingPong.Load() || !c.transport.Open() {
			// Unregister before closing: the read loop exits on close and
			// unregisters too.
			if r.Unregister(c) {
				reaped++
				metrics.RealtimeReaped.Inc()
				r.log.Info().Str("conn_id", c.ID).Int64("user_id", c.UserID).Msg("reaped unresponsive connection")
			}
			_ = c.transport.Close()
			continue
		}
		c.awaitingPong.Store(true)
		if err := c.transport.Ping(); err != nil {
			r.log.Debug().Err(err).Str("conn_id", c.ID).Msg("ping failed")
		}
	}
	return reaped
}

// CloseAll closes and unregisters every connection.
func (r *Registry) CloseAll() {
	for _, c := range r.matching(func(*Connection) bool { return true }) {
		_ = c.transport.Close()
		r.Unregister(c)
	}
}
