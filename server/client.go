package server

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hlandau/degoutils/log"
	"github.com/picoircd/picoircd/parse"
)

type clientState int

const (
	// Waiting for a correct PASS command; only entered when the server is
	// configured with a connection password.
	stateAwaitingPassword clientState = iota

	// Collecting NICK and USER.
	stateUnregistered

	// Fully registered; the complete command table applies.
	stateRegistered

	// Terminal.
	stateDisconnected
)

const (
	// A session silent for longer than maxIdleTime is disconnected.
	maxIdleTime = 180 * time.Second

	// A registered session silent for longer than pingIdleTime is sent one
	// PING per idle period; an unregistered one is disconnected outright.
	pingIdleTime = 90 * time.Second

	sendqMax = 400 * 1024
)

// Client is one connected session. All fields except the tx queue and
// sendqCur are owned by the server's event loop; the rx and tx goroutines
// only touch the connection and the queue.
type Client struct {
	s    *Server
	conn net.Conn

	// Outbound queue, drained by the tx goroutine. Unbounded: the sendq
	// byte counter is the only cap.
	txMutex  sync.Mutex
	txQueue  []string
	txClosed bool
	txWake   chan struct{} // capacity 1

	host  string
	port  string
	ident string // from RFC1413 lookup, optional

	nick     string
	user     string
	realName string

	state clientState

	// canonical channel name -> Channel; kept mutually consistent with
	// Channel.members.
	channels map[string]*Channel

	parser parse.Parser

	lastActivity time.Time
	sentPing     bool

	sendqCur    int64 // atomic; decremented by the tx goroutine
	terminating bool
}

func (c *Client) userName() string {
	if c.ident != "" {
		return c.ident
	}
	return c.user
}

func (c *Client) nickOrStar() string {
	if c.nick == "" {
		return "*"
	}
	return c.nick
}

// rxLoop reads from the socket and posts received bytes to the event
// loop. A zero-length read maps to the "EOT" disconnect reason; any other
// error is reported verbatim.
func (c *Client) rxLoop() {
	buf := make([]byte, 1024)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.s.post(rxEvent{c: c, data: data})
		}
		if err != nil {
			reason := "EOT"
			if err != io.EOF {
				reason = err.Error()
			}
			c.s.post(discEvent{c: c, reason: reason})
			return
		}
	}
}

// txLoop drains the outbound queue into the socket, batch by batch,
// sleeping on the wake channel while the queue is empty. A write error
// ends the loop; enqueueing stays non-blocking throughout, so the event
// loop is never held up by a stuck socket.
func (c *Client) txLoop() {
	defer c.conn.Close()

	for {
		c.txMutex.Lock()
		queue := c.txQueue
		c.txQueue = nil
		closed := c.txClosed
		c.txMutex.Unlock()

		for _, x := range queue {
			_, err := c.conn.Write([]byte(x))
			if err != nil {
				c.s.post(discEvent{c: c, reason: err.Error()})
				return
			}

			atomic.AddInt64(&c.sendqCur, -int64(len(x)))
		}

		if closed {
			return
		}
		if len(queue) == 0 {
			<-c.txWake
		}
	}
}

// closeTx marks the queue closed and wakes the tx goroutine so it exits
// once the remaining lines are flushed.
func (c *Client) closeTx() {
	c.txMutex.Lock()
	c.txClosed = true
	c.txMutex.Unlock()

	select {
	case c.txWake <- struct{}{}:
	default:
	}
}

// message enqueues one serialized line for transmission. The queue plus
// the sendq byte counter is the backpressure mechanism: a slow reader
// grows its own queue without ever blocking the event loop, and is
// disconnected only when the queued bytes exceed the cap.
func (c *Client) message(line string) {
	if c.state == stateDisconnected {
		return
	}

	if atomic.AddInt64(&c.sendqCur, int64(len(line))) > sendqMax {
		c.terminate("sendq exceeded")
		return
	}

	if c.s.cfg.Debug {
		log.Info("[" + c.host + ":" + c.port + "] <- " + line)
	}

	c.txMutex.Lock()
	c.txQueue = append(c.txQueue, line)
	c.txMutex.Unlock()

	select {
	case c.txWake <- struct{}{}:
	default:
	}
}

func (c *Client) send(m *parse.Message) {
	c.message(m.String())
	c.s.messagesSent.Inc()
}

// sendFromServer sends a message prefixed with the server name.
func (c *Client) sendFromServer(m *parse.Message) {
	m.ServerName = c.s.name
	c.send(m)
}

// sendFromUser sends a message prefixed with the originating user's
// nick!user@host mask.
func (c *Client) sendFromUser(from *Client, m *parse.Message) {
	m.NickName = from.nick
	m.UserName = from.userName()
	m.HostName = from.host
	c.send(m)
}

func (c *Client) sendNumericFromServer(n int, args ...string) {
	m := parse.Message{}
	m.Command = numeric(n)
	m.Args = args
	c.sendFromServer(&m)
}

func (c *Client) sendCommandFromServer(cmd string, args ...string) {
	m := parse.Message{}
	m.Command = cmd
	m.Args = args
	c.sendFromServer(&m)
}

func (c *Client) sendCommandFromUser(from *Client, cmd string, args ...string) {
	m := parse.Message{}
	m.Command = cmd
	m.Args = args
	c.sendFromUser(from, &m)
}

func (c *Client) sendCommandBare(cmd string, args ...string) {
	m := parse.Message{}
	m.Command = cmd
	m.Args = args
	c.send(&m)
}

func (c *Client) replyNotEnoughParameters(cmd string) {
	c.sendNumericFromServer(461, c.nickOrStar(), cmd, "Not enough parameters")
}

func (c *Client) replyNoSuchChannel(channelName string) {
	c.sendNumericFromServer(403, c.nick, channelName, "No such channel")
}

// handleData runs inside the event loop: it feeds received bytes to the
// session's framer and dispatches every complete message, then resets the
// keepalive clock. Receipt of any bytes clears the ping-sent flag.
func (c *Client) handleData(data []byte) {
	if c.s.cfg.Debug {
		log.Info("[" + c.host + ":" + c.port + "] -> " + string(data))
	}

	c.parser.Parse(string(data))
	for _, m := range c.parser.Messages() {
		if c.state == stateDisconnected {
			break
		}
		c.s.messagesReceived.Inc()
		c.handleMessage(m)
	}

	c.lastActivity = time.Now()
	c.sentPing = false
}

func (c *Client) handleMessage(m *parse.Message) {
	switch c.state {
	case stateAwaitingPassword:
		c.handlePassword(m)
	case stateUnregistered:
		c.handleRegistration(m)
	case stateRegistered:
		c.handleCommand(m)
	}
}

type aliveAction int

const (
	aliveNone aliveAction = iota
	alivePing
	aliveTimeout
)

// keepaliveDecision is the watchdog's decision table. last is the time
// the session last received bytes.
func keepaliveDecision(now, last time.Time, sentPing, registered bool) aliveAction {
	if now.Sub(last) > maxIdleTime {
		return aliveTimeout
	}
	if !sentPing && now.Sub(last) > pingIdleTime {
		if registered {
			return alivePing
		}
		// Unregistered clients get no grace PING.
		return aliveTimeout
	}
	return aliveNone
}

func (c *Client) checkAliveness(now time.Time) {
	switch keepaliveDecision(now, c.lastActivity, c.sentPing, c.state == stateRegistered) {
	case aliveTimeout:
		c.terminate("ping timeout")
	case alivePing:
		c.sentPing = true
		c.sendCommandBare("PING", c.s.generatePingToken())
	}
}

// terminate disconnects the session: ERROR line, QUIT notice to related
// clients, removal from every channel (destroying any that empty), the
// nickname registry and the session set, all within the same loop
// iteration. Reachable from every state; idempotent.
func (c *Client) terminate(reason string) {
	if c.terminating {
		return
	}
	c.terminating = true

	c.sendCommandBare("ERROR", reason)

	quit := parse.Message{
		NickName: c.nick,
		UserName: c.userName(),
		HostName: c.host,
		Command:  "QUIT",
		Args:     []string{reason},
	}
	c.messageRelated(false, quit.String())

	for _, ch := range c.channelList() {
		ch.removeMember(c)
	}

	cnick := canonicalize(c.nick)
	if c.nick != "" && c.s.clientsByNick[cnick] == c {
		delete(c.s.clientsByNick, cnick)
		c.s.usersGauge.Dec()
	}
	delete(c.s.sessions, c)

	c.state = stateDisconnected
	c.closeTx()

	if c.s.cfg.Verbose {
		log.Info("Disconnected connection from " + c.host + ":" + c.port + " (" + reason + ").")
	}
}

func (c *Client) channelList() []*Channel {
	chs := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		chs = append(chs, ch)
	}
	return chs
}

// messageChannel sends a formatted command line from this client to every
// member of ch, excluding the origin unless includeSelf is set, and
// notifies broadcast subscribers.
func (c *Client) messageChannel(ch *Channel, cmd string, includeSelf bool, args ...string) {
	m := parse.Message{
		NickName: c.nick,
		UserName: c.userName(),
		HostName: c.host,
		Command:  cmd,
		Args:     args,
	}
	line := m.String()

	for member := range ch.members {
		if member != c || includeSelf {
			member.message(line)
		}
	}

	c.s.notifyBroadcast(ch.name, cmd, line, c.nick)
}

// messageRelated sends a raw line to the deduplicated union of members
// across all channels this client belongs to.
func (c *Client) messageRelated(includeSelf bool, line string) {
	targets := map[*Client]struct{}{}
	if includeSelf {
		targets[c] = struct{}{}
	}
	for _, ch := range c.channels {
		for member := range ch.members {
			targets[member] = struct{}{}
		}
	}
	if !includeSelf {
		delete(targets, c)
	}

	for t := range targets {
		t.message(line)
	}
}

func (c *Client) sendLUSERS() {
	c.sendNumericFromServer(251, c.nick,
		"There are "+strconv.Itoa(len(c.s.sessions))+" users and 0 services on 1 server")
}

func (c *Client) sendMOTD() {
	if len(c.s.motd) > 0 {
		c.sendNumericFromServer(375, c.nick, "- "+c.s.name+" Message of the day -")
		for _, line := range c.s.motd {
			c.sendNumericFromServer(372, c.nick, "- "+line)
		}
		c.sendNumericFromServer(376, c.nick, "End of /MOTD command")
	} else {
		c.sendNumericFromServer(422, c.nick, "MOTD File is missing")
	}
}
