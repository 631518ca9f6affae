package parse

import "strings"

type Message struct {
	// :server.name
	ServerName string

	// :nick!user@host
	NickName string
	UserName string
	HostName string

	// Command name (uppercase) or numeric
	Command string

	// All arguments including the trailing argument. The final argument is
	// serialized with a ':' introducer so that it may contain spaces.
	Args []string
}

func (m *Message) IsFromServer() bool {
	return m.ServerName != ""
}

func (m *Message) IsFromClient() bool {
	return m.NickName != ""
}

// String serializes the message as a CRLF-terminated protocol line.
func (m *Message) String() string {
	s := ""
	if m.ServerName != "" {
		s += ":"
		s += m.ServerName
		s += " "
	} else if m.NickName != "" {
		s += ":"
		s += m.NickName
		s += "!"
		s += m.UserName
		s += "@"
		s += m.HostName
		s += " "
	}

	s += m.Command

	if len(m.Args) > 0 {
		a := m.Args[0 : len(m.Args)-1]
		for _, v := range a {
			s += " "
			s += v
		}

		ta := m.Args[len(m.Args)-1]
		s += " :"
		s += ta
	}

	s += "\r\n"
	return s
}

// Parser accumulates arbitrary protocol input and splits it into complete
// messages. Input does not need to be line-aligned: a trailing incomplete
// fragment is retained until the rest of the line arrives.
type Parser struct {
	buf  string
	msgs []*Message
}

// Parse appends input to the accumulator and extracts all complete lines.
// Lines are terminated by LF, with an optional preceding CR which is
// stripped. Empty lines are discarded.
//
// Complete messages are placed in an internal slice and can be retrieved
// by calling Messages().
func (p *Parser) Parse(s string) {
	p.buf += s
	for {
		i := strings.IndexByte(p.buf, '\n')
		if i < 0 {
			return
		}

		line := strings.TrimSuffix(p.buf[:i], "\r")
		p.buf = p.buf[i+1:]
		if line == "" {
			continue
		}

		p.msgs = append(p.msgs, splitLine(line))
	}
}

// Messages retrieves the slice of parsed messages. The internal slice is
// then cleared, so subsequent calls to Messages() will return an empty
// slice.
func (p *Parser) Messages() []*Message {
	k := p.msgs
	p.msgs = nil
	return k
}

// Pending reports whether an incomplete line fragment is buffered.
func (p *Parser) Pending() bool {
	return p.buf != ""
}

// splitLine splits one complete line into a command and its arguments.
// The command is the first space-delimited token, uppercased. If the
// remainder begins with ':', the rest of the line is the sole argument;
// otherwise the remainder is cut at the first " :" into positional
// arguments and an optional trailing argument.
func splitLine(line string) *Message {
	m := &Message{}

	cmd, rest, found := strings.Cut(line, " ")
	m.Command = strings.ToUpper(cmd)
	if !found {
		return m
	}

	if strings.HasPrefix(rest, ":") {
		m.Args = []string{rest[1:]}
		return m
	}

	head, trailing, hasTrailing := strings.Cut(rest, " :")
	m.Args = strings.Fields(head)
	if hasTrailing {
		m.Args = append(m.Args, trailing)
	}

	return m
}
