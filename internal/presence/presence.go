// Package presence runs the Socket.IO endpoint that tracks who is online and
// pushes notifications to their open tabs.
package presence

import (
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
)

const namespace = "/"

// Tracker counts live connections per user; one user may have several tabs open.
type Tracker struct {
	mu    sync.RWMutex
	conns map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]int)}
}

func (t *Tracker) Connect(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[userID]++
}

func (t *Tracker) Disconnect(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[userID] <= 1 {
		delete(t.conns, userID)
		return
	}
	t.conns[userID]--
}

func (t *Tracker) Online(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conns[userID] > 0
}

// Filter returns the ids from userIDs that are online, preserving order.
func (t *Tracker) Filter(userIDs []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if t.conns[id] > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Authenticator resolves the session user from the handshake headers.
type Authenticator func(h http.Header) (string, error)

type Server struct {
	io      *socketio.Server
	tracker *Tracker
	log     *zerolog.Logger
}

// NewServer wires the connection lifecycle. Each authenticated connection joins
// a room named after its user id so pushes reach every tab.
func NewServer(tracker *Tracker, auth Authenticator, log *zerolog.Logger) *Server {
	s := &Server{io: socketio.NewServer(nil), tracker: tracker, log: log}

	s.io.OnConnect(namespace, func(c socketio.Conn) error {
		uid, err := auth(c.RemoteHeader())
		if err != nil {
			s.log.Debug().Err(err).Str("conn_id", c.ID()).Msg("rejecting unauthenticated socket")
			return err
		}
		c.SetContext(uid)
		c.Join(uid)
		s.tracker.Connect(uid)
		s.log.Debug().Str("user_id", uid).Str("conn_id", c.ID()).Msg("socket connected")
		return nil
	})

	s.io.OnEvent(namespace, "ping", func(c socketio.Conn) string {
		return "pong"
	})

	s.io.OnError(namespace, func(c socketio.Conn, err error) {
		s.log.Warn().Err(err).Msg("socket error")
	})

	s.io.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		uid, _ := c.Context().(string)
		if uid == "" {
			return
		}
		s.tracker.Disconnect(uid)
		s.log.Debug().Str("user_id", uid).Str("reason", reason).Msg("socket disconnected")
	})

	return s
}

// Push emits event to every connection of the user. Offline users are skipped.
func (s *Server) Push(userID, event string, payload any) {
	if !s.tracker.Online(userID) {
		return
	}
	s.io.BroadcastToRoom(namespace, userID, event, payload)
}

func (s *Server) Handler() http.Handler {
	return s.io
}

func (s *Server) Start() {
	go func() {
		if err := s.io.Serve(); err != nil {
			s.log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()
}

func (s *Server) Close() error {
	return s.io.Close()
}
