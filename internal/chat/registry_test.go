package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"go-chat/internal/config"
)

type recordedMessage struct {
	UserID  string
	RoomID  string
	Content string
}

type stubRecorder struct {
	mu      sync.Mutex
	records []recordedMessage
	fail    error
}

func (r *stubRecorder) RecordMessage(_ context.Context, userID, roomID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.records = append(r.records, recordedMessage{UserID: userID, RoomID: roomID, Content: content})
	return nil
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *stubRecorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func testConfig() config.Config {
	return config.Config{
		HeartbeatTimeout: time.Minute,
		SweepPeriod:      10 * time.Millisecond,
		WriteWait:        time.Second,
		PongWait:         time.Minute,
		MaxMessageSize:   512,
	}
}

func startRegistry(t *testing.T, cfg config.Config) (*Registry, *stubRecorder) {
	t.Helper()
	recorder := &stubRecorder{}
	registry := NewRegistry(recorder, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go registry.Run(ctx)
	return registry, recorder
}

func connect(t *testing.T, registry *Registry, cfg config.Config) *Session {
	t.Helper()
	s := NewSession(registry, nil, cfg, zerolog.Nop())
	id := registry.Connect(s)
	require.NotZero(t, id)
	return s
}

// receive reads the next frame pushed to the session's outbound buffer.
func receive(t *testing.T, s *Session) string {
	t.Helper()
	select {
	case msg, ok := <-s.send:
		require.True(t, ok, "send channel closed")
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return ""
	}
}

func requireSilent(t *testing.T, s *Session) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, s.send)
}

func TestRegistry_Connect_AssignsSequentialIdentities(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	// When two connections register
	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)

	// Then each gets the next identity and a join notice
	req.Equal(uint64(1), a.id)
	req.Equal(uint64(2), b.id)
	req.Equal("your id is 1", receive(t, a))
	req.Equal("your id is 2", receive(t, b))
}

func TestRegistry_Broadcast_DeliversToAllRoomMembersInOrder(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, recorder := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// When A sends three messages to the shared default room
	registry.Send(a, "1: first")
	registry.Send(a, "1: second")
	registry.Send(a, "1: third")

	// Then both members, sender included, observe them exactly once in order
	for _, s := range []*Session{a, b} {
		req.Equal("1: first", receive(t, s))
		req.Equal("1: second", receive(t, s))
		req.Equal("1: third", receive(t, s))
		requireSilent(t, s)
	}

	// And each accepted message is recorded durably
	req.Eventually(func() bool { return recorder.count() == 3 }, time.Second, 10*time.Millisecond)
}

func TestRegistry_Broadcast_DeliveryOutlivesRecorderFailure(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, recorder := startRegistry(t, cfg)
	recorder.setFail(errors.New("database is down"))

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// When a broadcast cannot be persisted
	registry.Send(a, "1: hello")

	// Then every room member still receives it
	req.Equal("1: hello", receive(t, a))
	req.Equal("1: hello", receive(t, b))

	// And the sender stays registered and keeps working
	registry.Send(a, "1: still here")
	req.Equal("1: still here", receive(t, a))
	req.Equal("1: still here", receive(t, b))
	req.Zero(recorder.count())
}

func TestRegistry_SendToRoom_SenderOutsideRoomDoesNotEcho(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	// Given connection 1 in "lobby" and connection 2 still in "main"
	one := connect(t, registry, cfg)
	two := connect(t, registry, cfg)
	receive(t, one)
	receive(t, two)
	registry.Join(one, "lobby")
	req.Equal("joined lobby", receive(t, one))

	// When connection 2 sends "hello" to "lobby"
	registry.SendToRoom(two, "lobby", "hello")

	// Then connection 1 receives it exactly once and connection 2 not at all
	req.Equal("hello", receive(t, one))
	requireSilent(t, one)
	requireSilent(t, two)
}

func TestRegistry_Join_AnnouncesToOldAndNewRoom(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	c := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)
	receive(t, c)

	// Given C already waits in "lobby"
	registry.Join(c, "lobby")
	req.Equal("joined lobby", receive(t, c))

	// When A moves from "main" to "lobby"
	registry.Join(a, "lobby")

	// Then the old room hears a departure, the new room an arrival
	req.Equal("Someone disconnected", receive(t, b))
	req.Equal("Someone connected", receive(t, c))
	req.Equal("joined lobby", receive(t, a))
}

func TestRegistry_ListRooms_SnapshotsKnownNames(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	receive(t, a)

	req.Equal([]string{"main"}, registry.ListRooms())

	registry.Join(a, "lobby")
	receive(t, a)

	// Rooms stay listed even when empty
	req.Equal([]string{"lobby", "main"}, registry.ListRooms())
}

func TestRegistry_Disconnect_TwiceIsANoOp(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// When A is disconnected twice (close racing the sweep, or a double close)
	registry.Disconnect(a)
	registry.Disconnect(a)

	// Then B hears about the departure exactly once
	req.Equal("Someone disconnected", receive(t, b))
	requireSilent(t, b)

	// And the room keeps working for the survivor
	registry.Send(b, "2: still here")
	req.Equal("2: still here", receive(t, b))
}

func TestRegistry_Sweep_EvictsExpiredSessionsOnly(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	cfg.HeartbeatTimeout = 50 * time.Millisecond
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// Given A has been silent past the timeout while B stays fresh
	a.lastSeen.Store(time.Now().Add(-time.Minute).UnixNano())
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.touch()
			}
		}
	}()

	// Then the sweep closes A's session
	req.Eventually(func() bool {
		select {
		case _, ok := <-a.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// And announces the departure to B once
	req.Equal("Someone disconnected", receive(t, b))
	requireSilent(t, b)

	// A second disconnect for the evicted session stays a no-op
	registry.Disconnect(a)
	requireSilent(t, b)
}
