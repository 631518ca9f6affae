package server

import (
	"github.com/presbrey/pkg/hooks"
)

// Broadcast describes a single channel broadcast as seen by external
// collaborators. Hooks observe traffic; they cannot alter it.
type Broadcast struct {
	// Channel is the channel's display name.
	Channel string

	// Command is the broadcast verb, e.g. "PRIVMSG" or "TOPIC".
	Command string

	// Line is the full wire line as delivered to members, without the
	// trailing CRLF.
	Line string

	// Sender is the nickname of the originating client.
	Sender string
}

// Broadcasts returns the hook registry fired for every channel
// broadcast. Hooks run outside the server's run loop and must not block
// on server operations other than InjectChannelMessage.
func (s *Server) Broadcasts() *hooks.Registry[Broadcast] {
	return s.broadcasts
}

func (s *Server) notifyBroadcast(channelName, command, line, sender string) {
	if s.broadcasts.Count() == 0 {
		return
	}
	b := Broadcast{
		Channel: channelName,
		Command: command,
		Line:    line,
		Sender:  sender,
	}
	go s.broadcasts.RunAll(b)
}

// InjectChannelMessage delivers a PRIVMSG to every member of the named
// channel on behalf of an external collaborator. The nick does not need
// to belong to a connected client. The message bypasses the broadcast
// hooks, so a hook may call this without feeding itself.
//
// If the channel does not exist the message is dropped.
func (s *Server) InjectChannelMessage(channelName, nick, text string) {
	s.post(injectEvent{channelName: channelName, nick: nick, text: text})
}
