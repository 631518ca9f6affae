package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGircClientSession runs a real IRC client library against the
// server: registration, channel join and message exchange with a raw
// peer connection.
func TestGircClientSession(t *testing.T) {
	s := newTestServer(t, Config{})

	peer := dial(t, s)
	peer.register("peer")
	peer.join("#e2e")

	host, portStr, err := net.SplitHostPort(s.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	received := make(chan string, 1)

	bot := girc.New(girc.Config{
		Server: host,
		Port:   port,
		Nick:   "gbot",
		User:   "gbot",
		Name:   "girc bot",
	})
	defer bot.Close()

	bot.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		c.Cmd.Join("#e2e")
	})
	bot.Handlers.Add(girc.PRIVMSG, func(c *girc.Client, e girc.Event) {
		received <- e.Last()
		c.Cmd.Message("#e2e", "ack")
	})
	go bot.Connect()

	line := peer.waitFor("JOIN")
	assert.Contains(t, line, "gbot")

	peer.send("PRIVMSG #e2e :hello bot")
	select {
	case msg := <-received:
		assert.Equal(t, "hello bot", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the bot to receive the message")
	}

	assert.Contains(t, peer.waitFor("PRIVMSG"), "PRIVMSG #e2e :ack")
}
