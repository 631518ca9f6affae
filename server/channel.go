package server

import (
	"sort"
	"strings"
)

// Channel owns a membership set, a topic and an optional join key. The
// display name keeps the case supplied by the creating JOIN; registry
// lookups use the canonical form. A channel exists in the registry iff it
// has at least one member.
type Channel struct {
	s    *Server
	name string

	topic string
	key   string // "" means no key set

	members map[*Client]struct{}
}

func (ch *Channel) Name() string {
	return ch.name
}

func (ch *Channel) Topic() string {
	return ch.topic
}

func (ch *Channel) addMember(c *Client) {
	ch.members[c] = struct{}{}
	c.channels[canonicalize(ch.name)] = ch
}

// removeMember drops c from the member set and destroys the channel if it
// is now empty.
func (ch *Channel) removeMember(c *Client) {
	delete(ch.members, c)
	delete(c.channels, canonicalize(ch.name))
	if len(ch.members) == 0 {
		ch.s.removeChannel(ch)
	}
}

// memberNicks returns the members' nicknames sorted for the NAMES reply.
func (ch *Channel) memberNicks() string {
	nicks := make([]string, 0, len(ch.members))
	for m := range ch.members {
		nicks = append(nicks, m.nick)
	}
	sort.Strings(nicks)
	return strings.Join(nicks, " ")
}
