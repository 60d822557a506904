package ddns

import "fmt"

// Public IP lookup services used by DefaultResolver.
// The IPv6 service only listens on IPv6, so it fails fast on hosts without IPv6.
const (
	DefaultIPv4Service = "https://checkip.amazonaws.com/"
	DefaultIPv6Service = "https://api6.ipify.org/"
)

// DefaultResolver returns the resolver used when none is configured:
// the IPv4 address is required and the IPv6 address is looked up when available.
func DefaultResolver() Resolver {
	r, _ := LookupResolver("web", true)
	return r
}

// LookupResolver builds a public address resolver by method name.
//
//   - "web": HTTP lookup services (DefaultIPv4Service, DefaultIPv6Service)
//   - "dns": OpenDNS myip.opendns.com
//
// The IPv4 lookup must succeed. With withIPv6 set an IPv6 lookup is added,
// and its failure only means no AAAA records are managed.
func LookupResolver(method string, withIPv6 bool) (Resolver, error) {
	var v4, v6 Resolver
	switch method {
	case "", "web":
		v4 = WebResolver(DefaultIPv4Service)
		v6 = WebResolver(DefaultIPv6Service)
	case "dns":
		v4 = DNSResolver(OpenDNSServerV4, OpenDNSMyIP, false)
		v6 = DNSResolver(OpenDNSServerV6, OpenDNSMyIP, true)
	default:
		return nil, fmt.Errorf("unknown lookup method %q: expected \"web\" or \"dns\"", method)
	}
	if !withIPv6 {
		return IPv4Only(v4), nil
	}
	return Join(IPv4Only(v4), Optional(IPv6Only(v6))), nil
}
