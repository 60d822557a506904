package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"

	"github.com/sirupsen/logrus"
)

// DefaultTTL is used for records created by the client unless WithTTL is given.
const DefaultTTL = 3600

// DefaultComment is attached to records created by the client unless WithComment is given.
const DefaultComment = "managed by ddns-hosttech"

var discard logrus.FieldLogger = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New constructs a DDNSClient which keeps every domain in domains pointed at the resolved addresses.
//
// At least one domain and a Provider (ddns.UsingHosttech, ddns.UsingCloudflare or ddns.UsingProvider) are required.
// The resolver defaults to DefaultResolver.
func New(domains []string, options ...Option) (DDNSClient, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("ddns.New: at least one domain is required")
	}
	c := &client{
		logger:  discard,
		ttl:     DefaultTTL,
		comment: DefaultComment,
	}
	seen := map[Domain]bool{}
	for _, d := range domains {
		domain, err := ParseDomain(d)
		if err != nil {
			return nil, fmt.Errorf("ddns.New: %w", err)
		}
		if seen[domain] {
			continue
		}
		seen[domain] = true
		c.domains = append(c.domains, domain)
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingHosttech or similar")
	}
	if c.Resolver == nil {
		c.Resolver = DefaultResolver()
	}

	// dependencies may have been registered after WithLogger or UsingHTTPClient
	c.propagate()
	return c, nil
}

// Option configures a client constructed by New.
type Option func(*client) error

// UsingHosttech registers the Hosttech DNS API as the provider.
func UsingHosttech(token string) Option {
	return func(c *client) (err error) {
		if c.Provider, err = newHosttechProvider(token); err != nil {
			return fmt.Errorf("ddns.UsingHosttech: error creating hosttech DNS provider: %w", err)
		}
		return nil
	}
}

// UsingCloudflare registers Cloudflare as the provider.
func UsingCloudflare(token string) Option {
	return func(c *client) (err error) {
		if c.Provider, err = newCloudflareProvider(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers any Provider implementation.
func UsingProvider(p Provider) Option {
	return func(c *client) error {
		if p == nil {
			return fmt.Errorf("ddns.UsingProvider: provider cannot be nil")
		}
		c.Provider = p
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(c *client) error {
		if resolver == nil {
			resolver = DefaultResolver()
		}
		c.Resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) Option {
	return func(c *client) error {
		if len(serviceURL) == 0 {
			return fmt.Errorf("ddns.UsingWebResolver: at least one service URL is required")
		}
		c.Resolver = WebResolver(serviceURL...)
		return nil
	}
}

// WithEndpoint overrides the API base URL of the provider, e.g. for a staging API.
func WithEndpoint(endpoint string) Option {
	return func(c *client) error {
		c.endpoint = endpoint
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		return nil
	}
}

// WithTTL sets the TTL in seconds of records created by the client. Existing records keep their TTL.
func WithTTL(ttl int) Option {
	return func(c *client) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive; got %d", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithComment sets the comment attached to records created by the client.
func WithComment(comment string) Option {
	return func(c *client) error {
		c.comment = comment
		return nil
	}
}

// WithKeepPolicy chooses which record survives when duplicates are removed.
func WithKeepPolicy(policy KeepPolicy) Option {
	return func(c *client) error {
		switch policy {
		case KeepLowestID, KeepMatching:
		default:
			return fmt.Errorf("unknown keep policy %d", policy)
		}
		c.keep = policy
		return nil
	}
}

// WithDryRun makes the client log the changes it would make instead of making them.
func WithDryRun(dryRun bool) Option {
	return func(c *client) error {
		c.dryRun = dryRun
		return nil
	}
}

type setLogger interface {
	SetLogger(logrus.FieldLogger)
}

type setHTTPClient interface {
	SetHTTPClient(*http.Client)
}

type setEndpoint interface {
	SetEndpoint(string)
}

func (c *client) propagate() {
	if l, ok := c.Provider.(setLogger); ok {
		l.SetLogger(c.logger.WithField("provider", providerName(c.Provider)))
	}
	if l, ok := c.Resolver.(setLogger); ok {
		l.SetLogger(c.logger.WithField("component", "resolver"))
	}
	if c.httpClient != nil {
		if hc, ok := c.Provider.(setHTTPClient); ok {
			hc.SetHTTPClient(c.httpClient)
		}
		if hc, ok := c.Resolver.(setHTTPClient); ok {
			hc.SetHTTPClient(c.httpClient)
		}
	}
	if c.endpoint != "" {
		if e, ok := c.Provider.(setEndpoint); ok {
			e.SetEndpoint(c.endpoint)
		}
	}
}

func providerName(p Provider) string {
	switch p.(type) {
	case *hosttechProvider:
		return "hosttech"
	case *cloudflareProvider:
		return "cloudflare"
	}
	return fmt.Sprintf("%T", p)
}

// DDNSClient runs one reconciliation cycle over all of its domains.
type DDNSClient interface {
	RunDDNS(ctx context.Context) error
}

type client struct {
	Resolver
	Provider
	logger     logrus.FieldLogger
	httpClient *http.Client
	endpoint   string
	domains    []Domain
	ttl        int
	comment    string
	keep       KeepPolicy
	dryRun     bool
}

// RunDDNS resolves the current addresses and reconciles every domain against them.
//
// A resolver failure aborts the cycle before any record is touched.
// A failure on one domain is logged and does not stop the remaining domains;
// the returned error joins the failures of all domains.
func (c *client) RunDDNS(ctx context.Context) error {
	resolved, err := c.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("error getting IPs: %w", err)
	}
	addrs := pickAddrs(resolved)
	if len(addrs) == 0 {
		return fmt.Errorf("error getting IPs: resolver returned no usable addresses (got %v)", resolved)
	}
	c.logger.WithField("addrs", addrs).Info("resolved public addresses")

	var errs []error
	for _, d := range c.domains {
		log := c.logger.WithField("domain", d)
		if err := c.reconcile(ctx, d, addrs); err != nil {
			log.WithError(err).Error("update failed")
			if errors.Is(err, ErrUnauthorized) {
				log.Error("the provider rejected the API token; check that it is valid and has access to the zone")
			}
			errs = append(errs, fmt.Errorf("error updating %s: %w", d, err))
			continue
		}
		log.Debug("domain is up to date")
	}
	return errors.Join(errs...)
}

// pickAddrs returns at most one address per family,
// preferring global unicast addresses over link-local or private ones.
func pickAddrs(addrs []netip.Addr) []netip.Addr {
	var v4, v6 netip.Addr
	better := func(current, candidate netip.Addr) bool {
		if !current.IsValid() {
			return true
		}
		return !isPublic(current) && isPublic(candidate)
	}
	for _, a := range addrs {
		a = a.Unmap()
		if !a.IsValid() || a.IsUnspecified() || a.IsLoopback() {
			continue
		}
		if a.Is4() && better(v4, a) {
			v4 = a
		}
		if a.Is6() && better(v6, a) {
			v6 = a
		}
	}
	var picked []netip.Addr
	for _, a := range []netip.Addr{v4, v6} {
		if a.IsValid() {
			picked = append(picked, a)
		}
	}
	return picked
}

func isPublic(a netip.Addr) bool {
	return a.IsGlobalUnicast() && !a.IsPrivate()
}
