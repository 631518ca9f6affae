// Package rdns resolves client addresses to forward-confirmed hostnames.
package rdns

import (
	"context"
	"fmt"
	"net"
	"regexp"
)

var re_validHostName = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9-]*\.)*[a-zA-Z0-9][a-zA-Z0-9-]*\.?$`)

var ErrForwardMismatch = fmt.Errorf("forward lookup of RDNS name does not include the address")

// Lookup resolves addr (an IP address in string form) to a hostname. The
// name is only accepted if a forward lookup on it yields addr again, so
// clients cannot claim arbitrary hostnames via their reverse zone.
func Lookup(ctx context.Context, addr string) (string, error) {
	names, err := net.DefaultResolver.LookupAddr(ctx, addr)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no RDNS name found")
	}

	name := names[0]
	if !re_validHostName.MatchString(name) {
		return "", fmt.Errorf("invalid hostname received from RDNS: %q", name)
	}

	forward, err := net.DefaultResolver.LookupHost(ctx, name)
	if err != nil {
		return "", err
	}
	for _, a := range forward {
		if a == addr {
			return name, nil
		}
	}

	return "", ErrForwardMismatch
}
