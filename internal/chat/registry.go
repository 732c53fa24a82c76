package chat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"go-chat/internal/config"
)

// DefaultRoom is where every session lands right after connecting.
const DefaultRoom = "main"

// Recorder persists delivered broadcasts. The registry calls it off the
// delivery path; a slow or failing recorder never delays live sessions.
type Recorder interface {
	RecordMessage(ctx context.Context, userID, roomID, content string) error
}

const recordTimeout = 5 * time.Second

// clientMessage is an inbound frame from a session, already prefixed with
// the sender's display name. An empty room targets whatever room the
// registry currently has the sender in.
type clientMessage struct {
	sess *Session
	room string
	text string
}

type registerReq struct {
	sess  *Session
	reply chan uint64
}

type joinReq struct {
	sess *Session
	room string
}

type notifyReq struct {
	sess *Session
	text string
}

// Registry owns every live session and the room membership map. A single
// goroutine (Run) performs all mutation; everything else talks to it through
// channels, so joins, broadcasts, and the liveness sweep can never observe a
// half-updated membership set.
type Registry struct {
	sessions map[uint64]*Session
	rooms    map[string]map[uint64]struct{} // room name -> member identities
	nextID   uint64

	register   chan registerReq
	unregister chan *Session
	inbound    chan clientMessage
	join       chan joinReq
	notifyCh   chan notifyReq
	list       chan chan []string
	done       chan struct{}

	recorder Recorder
	timeout  time.Duration
	period   time.Duration
	log      zerolog.Logger
}

func NewRegistry(recorder Recorder, cfg config.Config, log zerolog.Logger) *Registry {
	return &Registry{
		sessions:   make(map[uint64]*Session),
		rooms:      map[string]map[uint64]struct{}{DefaultRoom: {}},
		register:   make(chan registerReq),
		unregister: make(chan *Session),
		inbound:    make(chan clientMessage),
		join:       make(chan joinReq),
		notifyCh:   make(chan notifyReq),
		list:       make(chan chan []string),
		done:       make(chan struct{}),
		recorder:   recorder,
		timeout:    cfg.HeartbeatTimeout,
		period:     cfg.SweepPeriod,
		log:        log,
	}
}

// Run is the registry's event loop. It must be the only goroutine touching
// the session and room maps.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			for _, s := range r.sessions {
				s.close()
			}
			r.sessions = make(map[uint64]*Session)
			r.rooms = map[string]map[uint64]struct{}{DefaultRoom: {}}
			return

		case req := <-r.register:
			r.handleRegister(req)

		case s := <-r.unregister:
			r.remove(s, true)

		case msg := <-r.inbound:
			r.handleBroadcast(msg)

		case req := <-r.join:
			r.handleJoin(req)

		case req := <-r.notifyCh:
			if current, ok := r.sessions[req.sess.id]; ok && current == req.sess {
				r.push(req.sess, req.text)
			}

		case reply := <-r.list:
			names := make([]string, 0, len(r.rooms))
			for name := range r.rooms {
				names = append(names, name)
			}
			sort.Strings(names)
			reply <- names

		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// Connect registers a session, assigns it the next identity, and places it
// in the default room. The session is Joined once this returns.
func (r *Registry) Connect(s *Session) uint64 {
	req := registerReq{sess: s, reply: make(chan uint64, 1)}
	select {
	case r.register <- req:
		return <-req.reply
	case <-r.done:
		return 0
	}
}

// Disconnect unregisters a session. Safe to call more than once; a second
// call is a no-op, not an error.
func (r *Registry) Disconnect(s *Session) {
	select {
	case r.unregister <- s:
	case <-r.done:
	}
}

// Send fans a message out to every member of the sender's current room.
func (r *Registry) Send(s *Session, text string) {
	select {
	case r.inbound <- clientMessage{sess: s, text: text}:
	case <-r.done:
	}
}

// SendToRoom fans a message out to the named room's members. The sender only
// sees its own message if it is a member of that room.
func (r *Registry) SendToRoom(s *Session, room, text string) {
	select {
	case r.inbound <- clientMessage{sess: s, room: room, text: text}:
	case <-r.done:
	}
}

// Join moves a session into the named room, creating it on first use.
func (r *Registry) Join(s *Session, room string) {
	select {
	case r.join <- joinReq{sess: s, room: room}:
	case <-r.done:
	}
}

// Notify pushes a system notice to one session, serialized through the loop
// like every other send.
func (r *Registry) Notify(s *Session, text string) {
	select {
	case r.notifyCh <- notifyReq{sess: s, text: text}:
	case <-r.done:
	}
}

// ListRooms returns a snapshot of the known room names.
func (r *Registry) ListRooms() []string {
	reply := make(chan []string, 1)
	select {
	case r.list <- reply:
		return <-reply
	case <-r.done:
		return nil
	}
}

func (r *Registry) handleRegister(req registerReq) {
	r.nextID++
	id := r.nextID
	s := req.sess
	s.id = id
	s.room = DefaultRoom

	r.sessions[id] = s
	r.addMember(DefaultRoom, id)

	r.push(s, fmt.Sprintf("your id is %d", id))
	r.log.Info().Uint64("session", id).Msg("session joined")
	req.reply <- id
}

// remove takes a session out of both maps and closes it. Idempotent: the
// maps are only touched when this exact session is still registered.
func (r *Registry) remove(s *Session, announce bool) {
	current, ok := r.sessions[s.id]
	if !ok || current != s {
		return
	}

	delete(r.sessions, s.id)
	if members, ok := r.rooms[s.room]; ok {
		delete(members, s.id)
	}
	s.close()

	if announce {
		r.sendToRoom(s.room, s.id, "Someone disconnected")
	}
	r.log.Info().Uint64("session", s.id).Str("room", s.room).Msg("session left")
}

func (r *Registry) handleBroadcast(msg clientMessage) {
	s := msg.sess
	if current, ok := r.sessions[s.id]; !ok || current != s {
		return
	}
	room := msg.room
	if room == "" {
		room = s.room
	}
	r.sendToRoom(room, 0, msg.text)

	// Durability runs off the loop. Failures are surfaced, not retried:
	// chat history integrity depends on knowing about them.
	sender := strconv.FormatUint(s.id, 10)
	text := msg.text
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordMessage(ctx, sender, room, text); err != nil {
			r.log.Error().Err(err).Str("room", room).Msg("failed to persist message")
		}
	}()
}

func (r *Registry) handleJoin(req joinReq) {
	s := req.sess
	if current, ok := r.sessions[s.id]; !ok || current != s {
		return
	}
	if req.room == s.room {
		return
	}

	if members, ok := r.rooms[s.room]; ok {
		delete(members, s.id)
	}
	r.sendToRoom(s.room, s.id, "Someone disconnected")

	s.room = req.room
	r.addMember(req.room, s.id)
	r.sendToRoom(req.room, s.id, "Someone connected")
	r.push(s, "joined "+req.room)
}

// sweep force-disconnects every session silent for longer than the timeout.
// An expired heartbeat is a lifecycle transition, not a failure.
func (r *Registry) sweep(now time.Time) {
	var expired []*Session
	for _, s := range r.sessions {
		if now.Sub(s.lastSeenAt()) > r.timeout {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		r.log.Info().Uint64("session", s.id).Msg("heartbeat expired, disconnecting")
		r.remove(s, true)
	}
}

// sendToRoom delivers text to every member of room except skipID, in
// registration order. Delivery is non-blocking per member: a session whose
// buffer is full is dropped from the registry rather than allowed to stall
// the rest of the room.
func (r *Registry) sendToRoom(room string, skipID uint64, text string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}

	ids := make([]uint64, 0, len(members))
	for id := range members {
		if id != skipID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var dead []*Session
	for _, id := range ids {
		s := r.sessions[id]
		if s == nil {
			continue
		}
		if !r.push(s, text) {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		r.remove(s, false)
	}
}

func (r *Registry) addMember(room string, id uint64) {
	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[uint64]struct{})
	}
	r.rooms[room][id] = struct{}{}
}

// push writes one frame to a session's outbound buffer without blocking.
func (r *Registry) push(s *Session, text string) bool {
	select {
	case s.send <- []byte(text):
		return true
	default:
		return false
	}
}
