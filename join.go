package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sync"

	"github.com/sirupsen/logrus"
)

// Join constructs a resolver which runs every resolver concurrently and returns all of their addresses.
// It fails if any of them fails; wrap a resolver with Optional to tolerate its failure.
func Join(resolvers ...Resolver) Resolver {
	return joinResolver(resolvers)
}

type joinResolver []Resolver

func (j joinResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	results := make([][]netip.Addr, len(j))
	errs := make([]error, len(j))
	var wg sync.WaitGroup
	for i, r := range j {
		wg.Add(1)
		go func(i int, r Resolver) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(ctx)
		}(i, r)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	var addrs []netip.Addr
	for _, r := range results {
		addrs = append(addrs, r...)
	}
	return addrs, nil
}

func (j joinResolver) SetLogger(l logrus.FieldLogger) {
	for _, r := range j {
		if s, ok := r.(setLogger); ok {
			s.SetLogger(l)
		}
	}
}

func (j joinResolver) SetHTTPClient(hc *http.Client) {
	for _, r := range j {
		if s, ok := r.(setHTTPClient); ok {
			s.SetHTTPClient(hc)
		}
	}
}

// Optional constructs a resolver which logs and swallows the errors of r, returning no addresses instead.
func Optional(r Resolver) Resolver {
	return &optionalResolver{Resolver: r, logger: discard}
}

type optionalResolver struct {
	Resolver
	logger logrus.FieldLogger
}

func (o *optionalResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	addrs, err := o.Resolver.Resolve(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("optional address lookup failed")
		return nil, nil
	}
	return addrs, nil
}

func (o *optionalResolver) SetLogger(l logrus.FieldLogger) {
	o.logger = l
	if s, ok := o.Resolver.(setLogger); ok {
		s.SetLogger(l)
	}
}

func (o *optionalResolver) SetHTTPClient(hc *http.Client) {
	if s, ok := o.Resolver.(setHTTPClient); ok {
		s.SetHTTPClient(hc)
	}
}

// IPv4Only constructs a resolver which drops everything but IPv4 addresses from r,
// and fails when none are left.
func IPv4Only(r Resolver) Resolver {
	return &familyResolver{Resolver: r, ipv6: false}
}

// IPv6Only is like IPv4Only, for IPv6.
func IPv6Only(r Resolver) Resolver {
	return &familyResolver{Resolver: r, ipv6: true}
}

type familyResolver struct {
	Resolver
	ipv6 bool
}

func (f *familyResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	addrs, err := f.Resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is6() == f.ipv6 && a.IsValid() {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		family := "IPv4"
		if f.ipv6 {
			family = "IPv6"
		}
		return nil, fmt.Errorf("no %s address in %v", family, addrs)
	}
	return filtered, nil
}

func (f *familyResolver) SetLogger(l logrus.FieldLogger) {
	if s, ok := f.Resolver.(setLogger); ok {
		s.SetLogger(l)
	}
}

func (f *familyResolver) SetHTTPClient(hc *http.Client) {
	if s, ok := f.Resolver.(setHTTPClient); ok {
		s.SetHTTPClient(hc)
	}
}
