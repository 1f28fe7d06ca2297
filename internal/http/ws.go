package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"teamdesk/internal/realtime"
)

const (
	handshakeTimeout = 10 * time.Second
	maxInboundFrame  = 4096
)

// handleWS upgrades the request and waits for the authenticate frame. The
// frame must name the session's user; role and manager come from the stored
// user record.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.requestLog(r).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	transport := realtime.NewWSTransport(conn, s.cfg.WSWriteTimeout)
	defer transport.Close()

	conn.SetReadLimit(maxInboundFrame)
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	var hello realtime.AuthenticateMessage
	if err := readJSONFrame(conn, &hello); err != nil || hello.Type != realtime.MessageAuthenticate {
		_ = transport.WriteJSON(realtime.ReplyMessage{Type: realtime.MessageError, Message: "expected authenticate message"})
		return
	}
	if hello.UserID != p.UserID {
		_ = transport.WriteJSON(realtime.ReplyMessage{Type: realtime.MessageError, Message: "userId does not match session"})
		return
	}
	user, err := s.team.User(r.Context(), p.UserID)
	if err != nil {
		_ = transport.WriteJSON(realtime.ReplyMessage{Type: realtime.MessageError, Message: "unknown user"})
		return
	}

	c := realtime.NewConnection(transport, user.ID, user.Role, user.Manager())
	if err := s.registry.Register(c); err != nil {
		s.requestLog(r).Error().Err(err).Msg("register connection")
		return
	}
	defer s.registry.Unregister(c)

	if err := transport.WriteJSON(realtime.ReplyMessage{Type: realtime.MessageAuthenticated, Message: "connected as " + user.Name}); err != nil {
		return
	}
	s.requestLog(r).Info().Str("conn_id", c.ID).Int64("user_id", user.ID).Msg("websocket connected")

	if err := transport.ReadUntilClosed(c); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, realtime.ErrClosed) {
		s.requestLog(r).Debug().Err(err).Str("conn_id", c.ID).Msg("websocket closed")
	}
}

func readJSONFrame(conn *websocket.Conn, out any) error {
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if kind != websocket.TextMessage {
		return errors.New("expected text frame")
	}
	return json.Unmarshal(data, out)
}
