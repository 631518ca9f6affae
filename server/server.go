package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hlandau/degoutils/log"
	"github.com/presbrey/pkg/hooks"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/salsa20"

	"github.com/picoircd/picoircd/dnsbl"
	"github.com/picoircd/picoircd/ident"
	"github.com/picoircd/picoircd/rdns"
)

const serverVersion = "picoircd-1.1"

type Config struct {
	ServerName   string `default:"" description:"Server name presented to clients (defaults to the hostname)"`
	ListenAddr   string `default:"" description:"Address to bind listening sockets to"`
	Ports        string `default:"6667" description:"Comma-separated list of TCP ports to listen on"`
	Password     string `default:"" description:"Connection password, compared case-insensitively (empty disables)"`
	MOTDFile     string `default:"" description:"Path to the message of the day file"`
	DNSBLDomain  string `default:"" description:"DNSBL zone used to screen connecting addresses (empty disables)"`
	ResolveHosts bool   `default:"false" description:"Resolve client hostnames via reverse DNS"`
	IdentLookup  bool   `default:"false" description:"Look up client usernames via the ident protocol"`
	MetricsAddr  string `default:"" description:"Address to serve Prometheus metrics on (empty disables)"`
	Verbose      bool   `default:"true" description:"Log connection activity"`
	Debug        bool   `default:"false" description:"Log all protocol traffic"`
}

// Events posted to the run loop. All registry state is owned by the run
// goroutine; everything else communicates with it through these.
type (
	acceptEvent struct{ conn net.Conn }
	rxEvent     struct {
		c    *Client
		data []byte
	}
	discEvent struct {
		c      *Client
		reason string
	}
	identEvent struct {
		c        *Client
		username string
	}
	hostEvent struct {
		c    *Client
		host string
	}
	injectEvent struct {
		channelName string
		nick        string
		text        string
	}
)

type Server struct {
	cfg  Config
	name string
	motd []string

	sessions       map[*Client]struct{}
	clientsByNick  map[string]*Client
	channelsByName map[string]*Channel

	listeners []net.Listener
	events    chan interface{}
	stopChan  chan struct{}
	stopOnce  sync.Once

	pingTokenKey     [32]byte
	pingTokenCounter uint64

	screener *dnsbl.Checker

	broadcasts *hooks.Registry[Broadcast]

	metricsRegistry  *prometheus.Registry
	connectionsTotal prometheus.Counter
	messagesReceived prometheus.Counter
	messagesSent     prometheus.Counter
	usersGauge       prometheus.Gauge
	channelsGauge    prometheus.Gauge
}

func New(cfg Config) (*Server, error) {
	s := &Server{
		cfg:            cfg,
		name:           cfg.ServerName,
		sessions:       map[*Client]struct{}{},
		clientsByNick:  map[string]*Client{},
		channelsByName: map[string]*Channel{},
		events:         make(chan interface{}, 64),
		stopChan:       make(chan struct{}),
	}

	if s.name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		s.name = hostname
	}

	if cfg.DNSBLDomain != "" {
		s.screener = dnsbl.New(cfg.DNSBLDomain)
	}

	s.broadcasts = hooks.NewRegistry[Broadcast]()
	s.initMetrics()
	return s, nil
}

// SetMOTD sets the lines sent in response to MOTD requests and in the
// welcome burst. Must be called before Start.
func (s *Server) SetMOTD(lines []string) {
	s.motd = lines
}

func (s *Server) Start() error {
	_, err := rand.Read(s.pingTokenKey[:])
	if err != nil {
		return err
	}

	for _, port := range strings.Split(s.cfg.Ports, ",") {
		addr := net.JoinHostPort(s.cfg.ListenAddr, strings.TrimSpace(port))
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range s.listeners {
				l.Close()
			}
			return err
		}
		s.listeners = append(s.listeners, listener)
		if s.cfg.Verbose {
			log.Info("Listening on " + listener.Addr().String())
		}
	}

	for _, listener := range s.listeners {
		go s.acceptLoop(listener)
	}
	go s.run()
	return nil
}

func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		for _, listener := range s.listeners {
			listener.Close()
		}
		close(s.stopChan)
	})
	return nil
}

// Addr returns the address of the first listener. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listeners[0].Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		if s.screener == nil {
			s.post(acceptEvent{conn: conn})
			continue
		}

		// DNSBL screening involves a DNS round trip, so it happens off
		// the run loop.
		go func(conn net.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if ip := remoteIP(conn); ip != nil && s.screener.Listed(ctx, ip) {
				if s.cfg.Verbose {
					log.Info("Rejected connection from " + conn.RemoteAddr().String() + " (DNSBL).")
				}
				conn.Write([]byte("ERROR :Connection rejected\r\n"))
				conn.Close()
				return
			}
			s.post(acceptEvent{conn: conn})
		}(conn)
	}
}

func (s *Server) post(e interface{}) {
	select {
	case s.events <- e:
	case <-s.stopChan:
	}
}

// run owns every session and registry. It is the only goroutine which
// touches them after Start.
func (s *Server) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case e := <-s.events:
			s.handleEvent(e)

		case now := <-ticker.C:
			for c := range s.sessions {
				c.checkAliveness(now)
			}

		case <-s.stopChan:
			for c := range s.sessions {
				c.terminate("Server shutting down")
			}
			return
		}
	}
}

func (s *Server) handleEvent(e interface{}) {
	switch e := e.(type) {
	case acceptEvent:
		s.handleAccept(e.conn)

	case rxEvent:
		if e.c.state != stateDisconnected {
			e.c.handleData(e.data)
		}

	case discEvent:
		e.c.terminate(e.reason)

	case identEvent:
		if e.c.state != stateDisconnected {
			e.c.ident = e.username
		}

	case hostEvent:
		if e.c.state != stateDisconnected {
			e.c.host = e.host
		}

	case injectEvent:
		if !s.hasChannel(e.channelName) {
			return
		}
		ch := s.getChannel(e.channelName)
		line := ":" + e.nick + " PRIVMSG " + ch.name + " :" + e.text + "\r\n"
		for member := range ch.members {
			member.message(line)
		}
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	host, port, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		conn.Close()
		return
	}

	state := stateUnregistered
	if s.cfg.Password != "" {
		state = stateAwaitingPassword
	}

	c := &Client{
		s:            s,
		conn:         conn,
		txWake:       make(chan struct{}, 1),
		host:         host,
		port:         port,
		state:        state,
		channels:     map[string]*Channel{},
		lastActivity: time.Now(),
	}

	s.sessions[c] = struct{}{}
	s.connectionsTotal.Inc()
	if s.cfg.Verbose {
		log.Info("Accepted connection from " + host + ":" + port + ".")
	}

	go c.rxLoop()
	go c.txLoop()

	if s.cfg.ResolveHosts {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if name, err := rdns.Lookup(ctx, host); err == nil {
				s.post(hostEvent{c: c, host: name})
			}
		}()
	}

	if s.cfg.IdentLookup {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if username, err := ident.Query(ctx, conn.LocalAddr(), conn.RemoteAddr()); err == nil {
				s.post(identEvent{c: c, username: username})
			}
		}()
	}
}

// getClient looks up a registered client by nickname, folding per RFC1459.
func (s *Server) getClient(nick string) *Client {
	return s.clientsByNick[canonicalize(nick)]
}

func (s *Server) hasChannel(name string) bool {
	_, ok := s.channelsByName[canonicalize(name)]
	return ok
}

// getChannel returns the channel with the given name, creating it if
// necessary. The display name of a created channel is the name as given.
func (s *Server) getChannel(name string) *Channel {
	cname := canonicalize(name)
	ch, ok := s.channelsByName[cname]
	if !ok {
		ch = &Channel{
			s:       s,
			name:    name,
			members: map[*Client]struct{}{},
		}
		s.channelsByName[cname] = ch
		s.channelsGauge.Inc()
	}
	return ch
}

func (s *Server) removeChannel(ch *Channel) {
	delete(s.channelsByName, canonicalize(ch.name))
	s.channelsGauge.Dec()
}

// clientChangedNickname moves c in the nickname registry. oldNick is ""
// when c acquires its first nickname.
func (s *Server) clientChangedNickname(c *Client, oldNick string) {
	if oldNick == "" {
		s.usersGauge.Inc()
	} else {
		delete(s.clientsByNick, canonicalize(oldNick))
	}
	s.clientsByNick[canonicalize(c.nick)] = c
}

// generatePingToken derives an unpredictable token from a counter so
// clients cannot anticipate the PING payload.
func (s *Server) generatePingToken() string {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], s.pingTokenCounter)
	s.pingTokenCounter++

	var token [8]byte
	salsa20.XORKeyStream(token[:], token[:], nonce[:], &s.pingTokenKey)
	return hex.EncodeToString(token[:])
}

func numeric(n int) string {
	return fmt.Sprintf("%03d", n)
}

func remoteIP(conn net.Conn) net.IP {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
