package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	type item struct {
		s    string
		cmd  string
		args []string
	}

	ss := []item{
		{"PING\r\n", "PING", nil},
		{"PING foo\r\n", "PING", []string{"foo"}},
		{"PING foo bar\r\n", "PING", []string{"foo", "bar"}},
		{"ping foo bar baz\r\n", "PING", []string{"foo", "bar", "baz"}},
		{"PING foo bar baz :alpha beta gamma delta\r\n", "PING", []string{"foo", "bar", "baz", "alpha beta gamma delta"}},
		{"QUIT :gone for lunch\r\n", "QUIT", []string{"gone for lunch"}},
		{"PRIVMSG #chan :hello there\n", "PRIVMSG", []string{"#chan", "hello there"}},
		{"USER joe 0 * :Joe Bloggs\r\n", "USER", []string{"joe", "0", "*", "Joe Bloggs"}},
		{"TOPIC #chan :\r\n", "TOPIC", []string{"#chan", ""}},
	}

	for _, i := range ss {
		p := &Parser{}
		p.Parse(i.s)
		msgs := p.Messages()
		require.Len(t, msgs, 1, "input %q", i.s)
		assert.Equal(t, i.cmd, msgs[0].Command, "input %q", i.s)
		assert.Equal(t, i.args, msgs[0].Args, "input %q", i.s)
	}
}

func TestParseSplitDelivery(t *testing.T) {
	p := &Parser{}

	p.Parse("NICK al")
	require.Empty(t, p.Messages())
	assert.True(t, p.Pending())

	p.Parse("ice\r\n")
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "NICK", msgs[0].Command)
	assert.Equal(t, []string{"alice"}, msgs[0].Args)
	assert.False(t, p.Pending())
}

func TestParseMultipleLines(t *testing.T) {
	p := &Parser{}
	p.Parse("NICK alice\r\nUSER alice 0 * :Alice\r\n\r\n\nPING tok")
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "NICK", msgs[0].Command)
	assert.Equal(t, "USER", msgs[1].Command)
	assert.True(t, p.Pending())

	// drained
	assert.Empty(t, p.Messages())
}

func TestParseBareLF(t *testing.T) {
	p := &Parser{}
	p.Parse("JOIN #a\nJOIN #b\r\n")
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"#a"}, msgs[0].Args)
	assert.Equal(t, []string{"#b"}, msgs[1].Args)
}

func TestSerialize(t *testing.T) {
	m := &Message{ServerName: "test.server", Command: "322", Args: []string{"alice", "#a", "1", "t"}}
	assert.Equal(t, ":test.server 322 alice #a 1 :t\r\n", m.String())

	m = &Message{NickName: "alice", UserName: "al", HostName: "localhost", Command: "PRIVMSG", Args: []string{"#a", "hi there"}}
	assert.Equal(t, ":alice!al@localhost PRIVMSG #a :hi there\r\n", m.String())

	m = &Message{Command: "PING", Args: []string{"tok"}}
	assert.Equal(t, "PING :tok\r\n", m.String())
}
