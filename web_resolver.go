package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK".
// The body is either the address as the first line of plain text,
// or a JSON object carrying it in an "ip" or "address" member.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if the first two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// For clients which have both IPv4 and IPv6 capability,
// use a service endpoint that only answers over one family, e.g. https://api6.ipify.org,
// and wrap the resolver with IPv4Only or IPv6Only.
// Use ddns.Join to combine both results.
func WebResolver(serviceURL ...string) Resolver {
	return &webResolver{serviceURLs: serviceURL, logger: discard}
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []string
	logger      logrus.FieldLogger
}

func (wr *webResolver) SetHTTPClient(hc *http.Client)  { wr.httpClient = hc }
func (wr *webResolver) SetLogger(l logrus.FieldLogger) { wr.logger = l }

// Resolve implements ddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return nil, errors.New("no external IP lookup services were provided")
	}
	if len(wr.serviceURLs) == 1 {
		ip, err := wr.lookup(ctx, wr.serviceURLs[0])
		if err != nil {
			return nil, err
		}
		return []netip.Addr{ip}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := min(len(wr.serviceURLs), 3)
	results := make(chan result, useCount)

	var wg sync.WaitGroup
	wg.Add(useCount)
	for _, u := range wr.serviceURLs[:useCount] {
		go func(u string) {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}(u)
	}
	go func() { wg.Wait(); close(results) }()

	resultCount := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		resultCount++ // don't increase the result count for errors
		if !ip.IsValid() {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return []netip.Addr{ip}, nil
		}
		return nil, fmt.Errorf("IP resolvers did not agree on our IP: %s != %s", ip, r.addr)
	}
	if resultCount < 2 {
		return nil, fmt.Errorf("not enough resolvers responded without errors: %w", errors.Join(errs...))
	}
	return nil, errors.New("IP resolvers did not agree on our IP")
}

func (wr *webResolver) lookup(ctx context.Context, url string) (netip.Addr, error) {
	// the timeout bounds a Resolve made with context.Background and http.DefaultClient
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request to %s returned %s", url, resp.Status)
	}

	ip, err := parseAddrBody(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from %s: %w", url, err)
	}
	wr.logger.WithFields(logrus.Fields{"service": url, "addr": ip}).Debug("got address from lookup service")
	return ip, nil
}

// parseAddrBody reads the first non-empty line of a plain text body,
// or the "ip" or "address" member when the body is a JSON object.
func parseAddrBody(r io.Reader) (netip.Addr, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return netip.Addr{}, err
	}
	body := bytes.TrimSpace(b)
	if bytes.HasPrefix(body, []byte("{")) {
		var v struct {
			IP      string `json:"ip"`
			Address string `json:"address"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return netip.Addr{}, err
		}
		if v.IP == "" {
			return parseAddr(v.Address)
		}
		return parseAddr(v.IP)
	}
	line, _, _ := bytes.Cut(body, []byte("\n"))
	return parseAddr(string(line))
}

// parseAddr strips whitespace and an IPv6 zone suffix ("%eth0") before parsing.
func parseAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return a.Unmap(), nil
}
