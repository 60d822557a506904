package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns the given addresses.
func FromString(addr ...string) (Resolver, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("no address given")
	}
	var addrs staticResolver
	for _, s := range addr {
		a, err := parseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("unable to parse IP: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

type staticResolver []netip.Addr

func (s staticResolver) Resolve(context.Context) ([]netip.Addr, error) {
	return append([]netip.Addr(nil), s...), nil
}
