package server

import "regexp"
import "strings"

var re_validNickName = regexp.MustCompile("^[][`_^{|}A-Za-z][][`_^{|}A-Za-z0-9-]{0,50}$")
var re_validChannelName = regexp.MustCompile("^[&#+!][^\x00\x07\x0a\x0d ,:]{0,50}$")

// canonicalize maps a nickname or channel name to its registry key using
// the RFC1459 casemapping: uppercase letters fold to lowercase and the
// characters []\^ fold to {}|~ respectively.
func canonicalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '[':
			return '{'
		case r == ']':
			return '}'
		case r == '\\':
			return '|'
		case r == '^':
			return '~'
		}
		return r
	}, s)
}

func validateNickName(nickName string) bool {
	return re_validNickName.MatchString(nickName)
}

func validateChannelName(channelName string) bool {
	return re_validChannelName.MatchString(channelName)
}
