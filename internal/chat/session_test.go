package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_PlainText_PrefixedWithIdentity(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// When A chats without having chosen a name
	a.handleFrame("hello there")

	// Then the identity prefixes the line for everyone in the room
	req.Equal("1: hello there", receive(t, a))
	req.Equal("1: hello there", receive(t, b))
}

func TestSession_NameCommand_PrefixesSubsequentMessages(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	a.handleFrame("/name alice")
	a.handleFrame("hi")

	req.Equal("alice: hi", receive(t, b))
}

func TestSession_JoinCommand_MovesRooms(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	b := connect(t, registry, cfg)
	receive(t, a)
	receive(t, b)

	// When A moves to another room and speaks
	a.handleFrame("/join lobby")
	req.Equal("joined lobby", receive(t, a))
	req.Equal("Someone disconnected", receive(t, b))

	a.handleFrame("anyone here?")

	// Then the old room stays quiet
	req.Equal("1: anyone here?", receive(t, a))
	requireSilent(t, b)
}

func TestSession_ListCommand_ReturnsKnownRooms(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	receive(t, a)
	registry.Join(a, "lobby")
	receive(t, a)

	a.handleFrame("/list")

	req.Equal("lobby", receive(t, a))
	req.Equal("main", receive(t, a))
}

func TestSession_MalformedCommands_NoticeAndStayJoined(t *testing.T) {
	req := require.New(t)
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	receive(t, a)

	// Unknown and incomplete commands answer with a notice, never a close
	a.handleFrame("/frobnicate now")
	req.Equal("!!! unknown command: /frobnicate", receive(t, a))

	a.handleFrame("/join")
	req.Equal("!!! room name is required", receive(t, a))

	a.handleFrame("/name")
	req.Equal("!!! name is required", receive(t, a))

	// The session still works afterwards
	a.handleFrame("still here")
	req.Equal("1: still here", receive(t, a))
}

func TestSession_BlankFramesAreIgnored(t *testing.T) {
	cfg := testConfig()
	registry, _ := startRegistry(t, cfg)

	a := connect(t, registry, cfg)
	receive(t, a)

	a.handleFrame("   ")
	requireSilent(t, a)
}
