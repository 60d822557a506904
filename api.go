package ddns

import (
	"context"
	"net/netip"
)

// Resolver looks up the addresses that DNS records should point to.
type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

// Resolve implements ddns.Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) {
	return f(ctx)
}

// Provider is a DNS hosting service whose records can be listed and changed.
//
// Record names are always fully qualified in both directions;
// implementations translate them to whatever naming their API uses.
type Provider interface {
	// FindZone returns the zone which holds records for domain.
	FindZone(ctx context.Context, domain Domain) (Zone, error)
	// ListRecords returns the records of recordType named exactly domain.
	ListRecords(ctx context.Context, zone Zone, domain Domain, recordType string) ([]Record, error)
	CreateRecord(ctx context.Context, zone Zone, record Record) (Record, error)
	UpdateRecord(ctx context.Context, zone Zone, record Record) (Record, error)
	DeleteRecord(ctx context.Context, zone Zone, record Record) error
}

// Zone is the provider-side container of records for a domain.
type Zone struct {
	ID   string
	Name string
}

// Record is a single A or AAAA record as seen by a Provider.
type Record struct {
	ID      string
	Type    string
	Name    Domain
	Addr    netip.Addr
	TTL     int
	Comment string
}

func recordType(a netip.Addr) string {
	if a.Is4() {
		return "A"
	}
	if a.Is6() {
		return "AAAA"
	}
	panic("unknown ip configuration")
}
