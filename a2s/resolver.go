package a2s

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sync/errgroup"
)

// Resolver translates a hostname to a list of IPv4 addresses; the first
// entry is used. This is the pluggable collaborator spec.md §6 describes —
// the dispatcher never does DNS itself.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]netip.Addr, error)
}

// netResolver is the default Resolver, backed by net.DefaultResolver.
type netResolver struct{}

// NewResolver returns the default Resolver implementation.
func NewResolver() Resolver {
	return netResolver{}
}

func (netResolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Is4() || addr.Is4In6() {
			return []netip.Addr{addr.Unmap()}, nil
		}
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolve, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no A records", ErrResolve, host)
	}
	return addrs, nil
}

// resolvedEndpoint is one entry of resolveAll's result: either a usable
// address, or the error that resolution failed with. A failure here is
// local to that endpoint and never affects its siblings.
type resolvedEndpoint struct {
	addr netip.AddrPort
	err  error
}

// resolveAll resolves every endpoint's host concurrently — one suspension
// per endpoint, parallelizable, per spec.md §5. Unlike errgroup.WithContext,
// one host's failure does not cancel the others: callers get a result per
// spec, in the same order, and decide per-endpoint what to do with a
// failure.
func resolveAll(ctx context.Context, resolver Resolver, specs []EndpointSpec) []resolvedEndpoint {
	results := make([]resolvedEndpoint, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			addrs, err := resolver.Resolve(ctx, spec.Host)
			if err != nil {
				results[i] = resolvedEndpoint{err: fmt.Errorf("endpoint %s:%d: %w", spec.Host, spec.Port, err)}
				return nil
			}
			results[i] = resolvedEndpoint{addr: netip.AddrPortFrom(addrs[0], spec.Port)}
			return nil
		})
	}
	g.Wait() // errors are carried per-result above; g itself never fails.
	return results
}
