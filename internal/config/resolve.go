package config

import (
	"context"
	"net"
	"strings"
	"time"
)

// LocalSuffix marks multicast DNS names.
const LocalSuffix = ".local"

// DefaultResolveTimeout bounds a single name lookup.
const DefaultResolveTimeout = 1000 * time.Millisecond

// Resolver turns a host name into an address.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ResolveLocalNames replaces .local host names in the listen address and in
// every server with their first IPv4 address. Names that fail to resolve are
// kept as they are.
func ResolveLocalNames(cfg *Config, r Resolver) {
	cfg.HostIP = resolveLocal(r, cfg.HostIP)
	for i := range cfg.Servers {
		cfg.Servers[i].IP = resolveLocal(r, cfg.Servers[i].IP)
	}
}

func resolveLocal(r Resolver, host string) string {
	if !strings.HasSuffix(strings.ToLower(host), LocalSuffix) {
		return host
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResolveTimeout)
	defer cancel()

	addrs, err := r.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return host
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}
