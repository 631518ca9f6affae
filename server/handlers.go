package server

import (
	"sort"
	"strconv"
	"strings"

	"github.com/picoircd/picoircd/parse"
)

// handlePassword accepts only PASS and QUIT while the session is waiting
// for the connection password. Anything else is ignored.
func (c *Client) handlePassword(m *parse.Message) {
	switch m.Command {
	case "PASS":
		if len(m.Args) == 0 {
			c.replyNotEnoughParameters("PASS")
			return
		}
		if strings.ToLower(m.Args[0]) == c.s.cfg.Password {
			c.state = stateUnregistered
		} else {
			c.sendNumericFromServer(464, "Password incorrect")
		}
	case "QUIT":
		c.terminate("Client quit")
	}
}

// handleRegistration collects NICK and USER; once both are present the
// welcome burst is emitted exactly once and the session becomes
// registered.
func (c *Client) handleRegistration(m *parse.Message) {
	switch m.Command {
	case "NICK":
		if len(m.Args) < 1 {
			c.sendNumericFromServer(431, "No nickname given")
			return
		}
		nick := m.Args[0]
		if c.s.getClient(nick) != nil {
			c.sendNumericFromServer(433, "*", nick, "Nickname is already in use")
		} else if !validateNickName(nick) {
			c.sendNumericFromServer(432, "*", nick, "Erroneous nickname")
		} else {
			oldNick := c.nick
			c.nick = nick
			c.s.clientChangedNickname(c, oldNick)
		}

	case "USER":
		if len(m.Args) < 4 {
			c.replyNotEnoughParameters("USER")
			return
		}
		c.user = m.Args[0]
		c.realName = m.Args[3]

	case "QUIT":
		c.terminate("Client quit")
		return
	}

	if c.nick != "" && c.user != "" {
		c.sendNumericFromServer(1, c.nick, "Hi, welcome to IRC")
		c.sendNumericFromServer(2, c.nick,
			"Your host is "+c.s.name+", running version "+serverVersion)
		c.sendNumericFromServer(3, c.nick, "This server was created sometime")
		c.sendNumericFromServer(4, c.nick, c.s.name+" "+serverVersion+" o o")
		c.sendLUSERS()
		c.sendMOTD()
		c.state = stateRegistered
	}
}

type commandHandler func(c *Client, m *parse.Message)

// commandTable is the static dispatch table consulted in registered
// state. An explicit lookup miss maps to the 421 reply.
var commandTable = map[string]commandHandler{
	"AWAY":    (*Client).handleAway,
	"ISON":    (*Client).handleIson,
	"JOIN":    (*Client).handleJoin,
	"LIST":    (*Client).handleList,
	"LUSERS":  (*Client).handleLusers,
	"MODE":    (*Client).handleMode,
	"MOTD":    (*Client).handleMotd,
	"NICK":    (*Client).handleNick,
	"NOTICE":  (*Client).handlePrivmsg,
	"PART":    (*Client).handlePart,
	"PING":    (*Client).handlePing,
	"PONG":    (*Client).handlePong,
	"PRIVMSG": (*Client).handlePrivmsg,
	"QUIT":    (*Client).handleQuit,
	"TOPIC":   (*Client).handleTopic,
	"WALLOPS": (*Client).handleWallops,
	"WHO":     (*Client).handleWho,
	"WHOIS":   (*Client).handleWhois,
}

func (c *Client) handleCommand(m *parse.Message) {
	h, ok := commandTable[m.Command]
	if !ok {
		c.sendNumericFromServer(421, c.nick, m.Command, "Unknown command")
		return
	}
	h(c, m)
}

func (c *Client) handleAway(m *parse.Message) {
}

func (c *Client) handleIson(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("ISON")
		return
	}
	var online []string
	for _, nick := range m.Args {
		if c.s.getClient(nick) != nil {
			online = append(online, nick)
		}
	}
	c.sendNumericFromServer(303, c.nick, strings.Join(online, " "))
}

func (c *Client) handleJoin(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("JOIN")
		return
	}

	if m.Args[0] == "0" {
		for channelName, ch := range c.channels {
			c.messageChannel(ch, "PART", true, channelName)
			ch.removeMember(c)
		}
		return
	}

	channelNames := strings.Split(m.Args[0], ",")
	var keys []string
	if len(m.Args) > 1 {
		keys = strings.Split(m.Args[1], ",")
	}
	for len(keys) < len(channelNames) {
		keys = append(keys, "")
	}

	for i, channelName := range channelNames {
		if _, ok := c.channels[canonicalize(channelName)]; ok {
			continue
		}
		if !validateChannelName(channelName) {
			c.replyNoSuchChannel(channelName)
			continue
		}

		ch := c.s.getChannel(channelName)
		if ch.key != "" && ch.key != keys[i] {
			c.sendNumericFromServer(475, c.nick, channelName,
				"Cannot join channel (+k) - bad key")
			continue
		}

		ch.addMember(c)
		c.messageChannel(ch, "JOIN", true, channelName)
		if ch.topic != "" {
			c.sendNumericFromServer(332, c.nick, ch.name, ch.topic)
		} else {
			c.sendNumericFromServer(331, c.nick, ch.name, "No topic is set")
		}
		c.sendNumericFromServer(353, c.nick, "=", channelName, ch.memberNicks())
		c.sendNumericFromServer(366, c.nick, channelName, "End of NAMES list")
	}
}

func (c *Client) handleList(m *parse.Message) {
	var channels []*Channel
	if len(m.Args) < 1 {
		for _, ch := range c.s.channelsByName {
			channels = append(channels, ch)
		}
	} else {
		for _, channelName := range strings.Split(m.Args[0], ",") {
			if c.s.hasChannel(channelName) {
				channels = append(channels, c.s.getChannel(channelName))
			}
		}
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].name < channels[j].name
	})
	for _, ch := range channels {
		c.sendNumericFromServer(322, c.nick, ch.name,
			strconv.Itoa(len(ch.members)), ch.topic)
	}
	c.sendNumericFromServer(323, c.nick, "End of LIST")
}

func (c *Client) handleLusers(m *parse.Message) {
	c.sendLUSERS()
}

func (c *Client) handleMode(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("MODE")
		return
	}

	targetName := m.Args[0]
	if c.s.hasChannel(targetName) {
		ch := c.s.getChannel(targetName)
		if len(m.Args) < 2 {
			// Mode query; the key is only disclosed to members.
			modes := "+"
			if ch.key != "" {
				modes = "+k"
				if _, ok := c.channels[canonicalize(ch.name)]; ok {
					modes += " " + ch.key
				}
			}
			c.sendNumericFromServer(324, c.nick, targetName, modes)
			return
		}

		flag := m.Args[1]
		switch flag {
		case "+k":
			if len(m.Args) < 3 {
				c.replyNotEnoughParameters("MODE")
				return
			}
			if _, ok := c.channels[canonicalize(ch.name)]; !ok {
				c.sendNumericFromServer(442, targetName, "You're not on that channel")
				return
			}
			ch.key = m.Args[2]
			c.messageChannel(ch, "MODE", true, ch.name, "+k", ch.key)
		case "-k":
			if _, ok := c.channels[canonicalize(ch.name)]; !ok {
				c.sendNumericFromServer(442, targetName, "You're not on that channel")
				return
			}
			ch.key = ""
			c.messageChannel(ch, "MODE", true, ch.name, "-k")
		default:
			c.sendNumericFromServer(472, c.nick, flag, "Unknown MODE flag")
		}
	} else if targetName == c.nick {
		if len(m.Args) == 1 {
			c.sendNumericFromServer(221, c.nick, "+")
		} else {
			c.sendNumericFromServer(501, c.nick, "Unknown MODE flag")
		}
	} else {
		c.replyNoSuchChannel(targetName)
	}
}

func (c *Client) handleMotd(m *parse.Message) {
	c.sendMOTD()
}

func (c *Client) handleNick(m *parse.Message) {
	if len(m.Args) < 1 {
		c.sendNumericFromServer(431, "No nickname given")
		return
	}

	newNick := m.Args[0]
	other := c.s.getClient(newNick)
	switch {
	case newNick == c.nick:
	case other != nil && other != c:
		c.sendNumericFromServer(433, c.nick, newNick, "Nickname is already in use")
	case !validateNickName(newNick):
		c.sendNumericFromServer(432, c.nick, newNick, "Erroneous nickname")
	default:
		change := parse.Message{
			NickName: c.nick,
			UserName: c.userName(),
			HostName: c.host,
			Command:  "NICK",
			Args:     []string{newNick},
		}
		oldNick := c.nick
		c.nick = newNick
		c.s.clientChangedNickname(c, oldNick)
		c.messageRelated(true, change.String())
	}
}

func (c *Client) handlePrivmsg(m *parse.Message) {
	if len(m.Args) == 0 {
		c.sendNumericFromServer(411, c.nick, "No recipient given ("+m.Command+")")
		return
	}
	if len(m.Args) == 1 {
		c.sendNumericFromServer(412, c.nick, "No text to send")
		return
	}

	targetName := m.Args[0]
	text := m.Args[1]
	if target := c.s.getClient(targetName); target != nil {
		target.sendCommandFromUser(c, m.Command, targetName, text)
	} else if c.s.hasChannel(targetName) {
		ch := c.s.getChannel(targetName)
		c.messageChannel(ch, m.Command, false, ch.name, text)
	} else {
		c.sendNumericFromServer(401, c.nick, targetName, "No such nick/channel")
	}
}

func (c *Client) handlePart(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("PART")
		return
	}

	partMessage := c.nick
	if len(m.Args) > 1 {
		partMessage = m.Args[1]
	}

	for _, channelName := range strings.Split(m.Args[0], ",") {
		if !validateChannelName(channelName) {
			c.replyNoSuchChannel(channelName)
		} else if ch, ok := c.channels[canonicalize(channelName)]; !ok {
			c.sendNumericFromServer(442, c.nick, channelName, "You're not on that channel")
		} else {
			c.messageChannel(ch, "PART", true, channelName, partMessage)
			ch.removeMember(c)
		}
	}
}

func (c *Client) handlePing(m *parse.Message) {
	if len(m.Args) < 1 {
		c.sendNumericFromServer(409, c.nick, "No origin specified")
		return
	}
	c.sendCommandFromServer("PONG", c.s.name, m.Args[0])
}

func (c *Client) handlePong(m *parse.Message) {
}

func (c *Client) handleQuit(m *parse.Message) {
	quitMessage := c.nick
	if len(m.Args) > 0 {
		quitMessage = m.Args[0]
	}
	c.terminate(quitMessage)
}

func (c *Client) handleTopic(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("TOPIC")
		return
	}

	channelName := m.Args[0]
	ch, ok := c.channels[canonicalize(channelName)]
	if !ok {
		c.sendNumericFromServer(442, channelName, "You're not on that channel")
		return
	}

	if len(m.Args) > 1 {
		ch.topic = m.Args[1]
		c.messageChannel(ch, "TOPIC", true, channelName, ch.topic)
	} else {
		if ch.topic != "" {
			c.sendNumericFromServer(332, c.nick, ch.name, ch.topic)
		} else {
			c.sendNumericFromServer(331, c.nick, ch.name, "No topic is set")
		}
	}
}

func (c *Client) handleWallops(m *parse.Message) {
	if len(m.Args) < 1 {
		c.replyNotEnoughParameters("WALLOPS")
		return
	}
	for target := range c.s.sessions {
		target.sendCommandFromUser(c, "NOTICE", target.nick,
			"Global notice: "+m.Args[0])
	}
}

func (c *Client) handleWho(m *parse.Message) {
	if len(m.Args) < 1 {
		return
	}
	targetName := m.Args[0]
	if !c.s.hasChannel(targetName) {
		return
	}

	ch := c.s.getChannel(targetName)
	for member := range ch.members {
		c.sendNumericFromServer(352, c.nick, targetName, member.userName(),
			member.host, c.s.name, member.nick, "H", "0 "+member.realName)
	}
	c.sendNumericFromServer(315, c.nick, targetName, "End of WHO list")
}

func (c *Client) handleWhois(m *parse.Message) {
	if len(m.Args) < 1 {
		return
	}

	target := c.s.getClient(m.Args[0])
	if target == nil {
		c.sendNumericFromServer(401, c.nick, m.Args[0], "No such nick")
		return
	}

	channelNames := make([]string, 0, len(target.channels))
	for name := range target.channels {
		channelNames = append(channelNames, name)
	}
	sort.Strings(channelNames)

	c.sendNumericFromServer(311, c.nick, target.nick, target.userName(),
		target.host, "*", target.realName)
	c.sendNumericFromServer(312, c.nick, target.nick, c.s.name, c.s.name)
	c.sendNumericFromServer(319, c.nick, target.nick, strings.Join(channelNames, " "))
	c.sendNumericFromServer(318, c.nick, target.nick, "End of WHOIS list")
}
