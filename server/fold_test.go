package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	for _, tc := range []struct {
		in, out string
	}{
		{"Alice", "alice"},
		{"alice", "alice"},
		{"N[X]", "n{x}"},
		{`a\b`, "a|b"},
		{"c^d", "c~d"},
		{"#Chan[1]", "#chan{1}"},
		{"{already}", "{already}"},
	} {
		assert.Equal(t, tc.out, canonicalize(tc.in), "canonicalize(%q)", tc.in)
	}
}

func TestValidateNickName(t *testing.T) {
	for _, nick := range []string{"alice", "Alice", "[slice]", "a-b_c", "_x", "`tick"} {
		assert.True(t, validateNickName(nick), "nick %q", nick)
	}
	for _, nick := range []string{"", "1alice", "-dash", "al ice", "al,ice", "al:ice"} {
		assert.False(t, validateNickName(nick), "nick %q", nick)
	}
}

func TestValidateChannelName(t *testing.T) {
	for _, name := range []string{"#test", "&local", "+modeless", "!spike", "#a-b.c"} {
		assert.True(t, validateChannelName(name), "channel %q", name)
	}
	for _, name := range []string{"", "test", "#with space", "#with,comma", "#with:colon"} {
		assert.False(t, validateChannelName(name), "channel %q", name)
	}
}

func TestKeepaliveDecision(t *testing.T) {
	now := time.Now()

	for _, tc := range []struct {
		name       string
		idle       time.Duration
		sentPing   bool
		registered bool
		want       aliveAction
	}{
		{"fresh", time.Second, false, true, aliveNone},
		{"at ping threshold", pingIdleTime, false, true, aliveNone},
		{"past ping threshold", pingIdleTime + time.Second, false, true, alivePing},
		{"ping already sent", pingIdleTime + time.Second, true, true, aliveNone},
		{"past ping threshold unregistered", pingIdleTime + time.Second, false, false, aliveTimeout},
		{"at idle limit", maxIdleTime, true, true, aliveNone},
		{"past idle limit", maxIdleTime + time.Second, true, true, aliveTimeout},
		{"past idle limit unregistered", maxIdleTime + time.Second, false, false, aliveTimeout},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := keepaliveDecision(now, now.Add(-tc.idle), tc.sentPing, tc.registered)
			assert.Equal(t, tc.want, got)
		})
	}
}
