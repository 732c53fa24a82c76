package chat

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-chat/internal/config"
)

// sendBufferSize bounds how many frames can queue for a slow client before
// the registry gives up on it.
const sendBufferSize = 256

// Session is the runtime state of one live connection. Its lifecycle is
// Connecting (created, identity 0) -> Joined (registry assigned an identity)
// -> Disconnected (transport closed or heartbeat expired).
//
// Field ownership is strict: id and room are written only by the registry
// loop, name only by the read pump, lastSeen through atomics. The send
// buffer is written by the registry loop and drained by the write pump.
type Session struct {
	id       uint64
	room     string
	name     string
	lastSeen atomic.Int64

	conn     *websocket.Conn
	send     chan []byte
	registry *Registry

	closeOnce sync.Once
	cfg       config.Config
	log       zerolog.Logger
}

func NewSession(registry *Registry, conn *websocket.Conn, cfg config.Config, log zerolog.Logger) *Session {
	s := &Session{
		room:     DefaultRoom,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		registry: registry,
		cfg:      cfg,
		log:      log,
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) lastSeenAt() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// displayName is what prefixes outgoing chat lines: the chosen name, or the
// identity when none was set.
func (s *Session) displayName() string {
	if s.name != "" {
		return s.name
	}
	return strconv.FormatUint(s.id, 10)
}

// close releases the outbound buffer exactly once. The write pump sees the
// closed channel and tears down the transport.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// handleFrame dispatches one inbound text frame. Malformed commands get a
// system notice and the session stays joined.
func (s *Session) handleFrame(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if !strings.HasPrefix(text, "/") {
		s.registry.Send(s, s.displayName()+": "+text)
		return
	}

	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/list":
		for _, name := range s.registry.ListRooms() {
			s.registry.Notify(s, name)
		}
	case "/join":
		if arg == "" {
			s.registry.Notify(s, "!!! room name is required")
			return
		}
		s.registry.Join(s, arg)
	case "/name":
		if arg == "" {
			s.registry.Notify(s, "!!! name is required")
			return
		}
		s.name = arg
	default:
		s.registry.Notify(s, "!!! unknown command: "+cmd)
	}
}

// readPump pumps frames from the websocket into the registry. Every frame,
// pongs included, refreshes the liveness timestamp. Runs in its own
// goroutine; tells the registry to unregister on the way out.
func (s *Session) readPump() {
	defer func() {
		s.registry.Disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug().Err(err).Uint64("session", s.id).Msg("read error")
			}
			break
		}
		s.touch()
		s.handleFrame(string(message))
	}
}

// writePump pumps frames from the registry to the websocket and keeps the
// connection alive with periodic pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				// The registry closed the session.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain whatever else is queued in one writer to save syscalls.
			n := len(s.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
