package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastHook(t *testing.T) {
	s := newTestServer(t, Config{})

	seen := make(chan Broadcast, 16)
	s.Broadcasts().Register(func(b Broadcast) error {
		seen <- b
		return nil
	})

	c1 := dial(t, s)
	c1.register("alice")
	c2 := dial(t, s)
	c2.register("bob")

	c1.join("#h")
	drainBroadcasts(t, seen) // alice's own JOIN
	c2.join("#h")
	drainBroadcasts(t, seen)
	c1.waitFor("bob")

	c1.send("PRIVMSG #h :observed")
	b := nextBroadcast(t, seen)
	assert.Equal(t, "#h", b.Channel)
	assert.Equal(t, "PRIVMSG", b.Command)
	assert.Equal(t, "alice", b.Sender)
	assert.Contains(t, b.Line, "PRIVMSG #h :observed")
}

func TestInjectChannelMessage(t *testing.T) {
	s := newTestServer(t, Config{})

	seen := make(chan Broadcast, 16)
	s.Broadcasts().Register(func(b Broadcast) error {
		seen <- b
		return nil
	})

	c1 := dial(t, s)
	c1.register("alice")
	c2 := dial(t, s)
	c2.register("bob")
	c1.join("#h")
	c2.join("#h")
	c1.waitFor("bob")
	drainBroadcasts(t, seen)

	// Injected messages reach every member, including anyone with the
	// sender's own nick, and never feed back into the hook.
	s.InjectChannelMessage("#h", "gateway", "from outside")
	assert.Equal(t, ":gateway PRIVMSG #h :from outside", c1.readLine())
	assert.Equal(t, ":gateway PRIVMSG #h :from outside", c2.readLine())

	select {
	case b := <-seen:
		t.Fatalf("injected message reached the hook: %+v", b)
	case <-time.After(100 * time.Millisecond):
	}

	// Unknown channels drop the message without error.
	s.InjectChannelMessage("#nowhere", "gateway", "dropped")
}

func nextBroadcast(t *testing.T, seen chan Broadcast) Broadcast {
	t.Helper()
	select {
	case b := <-seen:
		return b
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for broadcast")
		return Broadcast{}
	}
}

func drainBroadcasts(t *testing.T, seen chan Broadcast) {
	t.Helper()
	nextBroadcast(t, seen)
	for {
		select {
		case <-seen:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
