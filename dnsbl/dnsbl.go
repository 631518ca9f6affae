// Package dnsbl checks connecting addresses against a DNS blocklist.
package dnsbl

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	listedTTL   = 8 * time.Hour
	unlistedTTL = 1 * time.Hour
)

type cacheEntry struct {
	listed  bool
	expires time.Time
}

// Checker queries a single DNSBL zone and caches the results. Entries
// are evicted lazily on lookup, so an idle checker holds no goroutine.
type Checker struct {
	domain string

	mutex sync.Mutex
	cache map[string]cacheEntry
}

func New(domain string) *Checker {
	return &Checker{
		domain: domain,
		cache:  map[string]cacheEntry{},
	}
}

// Listed reports whether ip appears in the blocklist. Lookup failures
// count as not listed. Loopback, RFC1918 and other non-global addresses
// are never queried.
func (c *Checker) Listed(ctx context.Context, ip net.IP) bool {
	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return false
	}

	key := ip.String()
	now := time.Now()

	c.mutex.Lock()
	entry, ok := c.cache[key]
	if ok && now.Before(entry.expires) {
		c.mutex.Unlock()
		return entry.listed
	}
	delete(c.cache, key)
	c.mutex.Unlock()

	listed, err := c.query(ctx, ip)
	if err != nil {
		return false
	}

	ttl := unlistedTTL
	if listed {
		ttl = listedTTL
	}

	c.mutex.Lock()
	c.cache[key] = cacheEntry{listed: listed, expires: now.Add(ttl)}
	c.mutex.Unlock()

	return listed
}

func (c *Checker) query(ctx context.Context, ip net.IP) (bool, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		// v6 zones use a nibble format this checker does not speak.
		return false, fmt.Errorf("IPv6 not supported")
	}

	name := fmt.Sprintf("%d.%d.%d.%d.%s", ip4[3], ip4[2], ip4[1], ip4[0], c.domain)

	addrs, err := net.DefaultResolver.LookupHost(ctx, name)
	if err != nil {
		if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
			return false, nil
		}
		return false, err
	}

	return len(addrs) > 0, nil
}
