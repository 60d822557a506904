package ddns

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// OpenDNS answers queries for this name with the address the query came from.
const (
	OpenDNSMyIP     = "myip.opendns.com"
	OpenDNSServerV4 = "208.67.222.222:53"
	OpenDNSServerV6 = "[2620:119:35::35]:53"
)

// DNSResolver constructs a resolver which asks server for the A (or AAAA, when ipv6 is set) record of name.
// Some public resolvers answer a special name with the address of the client,
// e.g. OpenDNS for myip.opendns.com.
//
// The query leaves the host over the family of server's address,
// so query an IPv6 server to learn the IPv6 address.
func DNSResolver(server, name string, ipv6 bool) Resolver {
	return &dnsResolver{
		server: server,
		name:   dns.Fqdn(name),
		ipv6:   ipv6,
		client: &dns.Client{Timeout: 5 * time.Second},
		logger: discard,
	}
}

type dnsResolver struct {
	server string
	name   string
	ipv6   bool
	client *dns.Client
	logger logrus.FieldLogger
}

func (r *dnsResolver) SetLogger(l logrus.FieldLogger) { r.logger = l }

func (r *dnsResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	qtype := dns.TypeA
	if r.ipv6 {
		qtype = dns.TypeAAAA
	}
	m := new(dns.Msg)
	m.SetQuestion(r.name, qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns query to %s failed: %w", r.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query to %s returned %s", r.server, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip []byte
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		a, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addrs = append(addrs, a.Unmap())
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("dns query to %s for %s returned no %s records", r.server, r.name, dns.TypeToString[qtype])
	}
	r.logger.WithFields(logrus.Fields{"server": r.server, "addrs": addrs}).Debug("got address from dns")
	return addrs, nil
}
