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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HosttechEndpoint is the base URL of the Hosttech DNS API.
const HosttechEndpoint = "https://api.ns1.hosttech.eu/api/user/v1"

const hosttechRequestTimeout = 30 * time.Second

func newHosttechProvider(token string) (*hosttechProvider, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	return &hosttechProvider{
		endpoint: HosttechEndpoint,
		token:    token,
		logger:   discard,
	}, nil
}

// hosttechProvider implements ddns.Provider for the Hosttech DNS API.
//
// Hosttech names records relative to their zone;
// the apex is "" (older records may use "@") and a wildcard is "*".
type hosttechProvider struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func (p *hosttechProvider) SetLogger(l logrus.FieldLogger) { p.logger = l }
func (p *hosttechProvider) SetHTTPClient(hc *http.Client)  { p.httpClient = hc }
func (p *hosttechProvider) SetEndpoint(endpoint string)    { p.endpoint = endpoint }

type hosttechZone struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
}

type hosttechRecord struct {
	ID      int    `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	IPv4    string `json:"ipv4,omitempty"`
	IPv6    string `json:"ipv6,omitempty"`
	TTL     int    `json:"ttl"`
	Comment string `json:"comment"`
}

type hosttechErrorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// FindZone searches the account's zones and picks the longest zone name containing domain.
func (p *hosttechProvider) FindZone(ctx context.Context, domain Domain) (Zone, error) {
	q := url.Values{}
	q.Set("query", domain.zoneCandidate())
	q.Set("limit", "100")
	var zones []hosttechZone
	if err := p.do(ctx, http.MethodGet, "/zones", q, nil, &zones, http.StatusOK); err != nil {
		return Zone{}, fmt.Errorf("error listing zones: %w", err)
	}

	var best hosttechZone
	for _, z := range zones {
		if domain.InZone(z.Name) && len(z.Name) > len(best.Name) {
			best = z
		}
	}
	if best.Name == "" {
		return Zone{}, fmt.Errorf("unable to find a zone matching %q: %w", domain, ErrZoneNotFound)
	}
	return Zone{ID: strconv.Itoa(best.ID), Name: strings.ToLower(strings.TrimSuffix(best.Name, "."))}, nil
}

func (p *hosttechProvider) ListRecords(ctx context.Context, zone Zone, domain Domain, recordType string) ([]Record, error) {
	q := url.Values{}
	q.Set("type", recordType)
	var all []hosttechRecord
	if err := p.do(ctx, http.MethodGet, "/zones/"+url.PathEscape(zone.ID)+"/records", q, nil, &all, http.StatusOK); err != nil {
		return nil, err
	}
	p.logger.Debugf("found %d total records for zone ID %s", len(all), zone.ID)

	want := domain.RelativeTo(zone.Name)
	var records []Record
	for _, hr := range all {
		if !strings.EqualFold(hr.Type, recordType) || !sameRelativeName(hr.Name, want) {
			continue
		}
		r, err := hr.record(zone)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (p *hosttechProvider) CreateRecord(ctx context.Context, zone Zone, r Record) (Record, error) {
	body, err := newHosttechRecord(zone, r)
	if err != nil {
		return Record{}, err
	}
	var created hosttechRecord
	path := "/zones/" + url.PathEscape(zone.ID) + "/records"
	if err := p.do(ctx, http.MethodPost, path, nil, body, &created, http.StatusOK, http.StatusCreated); err != nil {
		return Record{}, err
	}
	return created.record(zone)
}

func (p *hosttechProvider) UpdateRecord(ctx context.Context, zone Zone, r Record) (Record, error) {
	body, err := newHosttechRecord(zone, r)
	if err != nil {
		return Record{}, err
	}
	var updated hosttechRecord
	path := "/zones/" + url.PathEscape(zone.ID) + "/records/" + url.PathEscape(r.ID)
	if err := p.do(ctx, http.MethodPut, path, nil, body, &updated, http.StatusOK); err != nil {
		return Record{}, err
	}
	return updated.record(zone)
}

func (p *hosttechProvider) DeleteRecord(ctx context.Context, zone Zone, r Record) error {
	path := "/zones/" + url.PathEscape(zone.ID) + "/records/" + url.PathEscape(r.ID)
	return p.do(ctx, http.MethodDelete, path, nil, nil, nil, http.StatusNoContent, http.StatusOK)
}

func newHosttechRecord(zone Zone, r Record) (hosttechRecord, error) {
	hr := hosttechRecord{
		Type:    r.Type,
		Name:    r.Name.RelativeTo(zone.Name),
		TTL:     r.TTL,
		Comment: r.Comment,
	}
	switch r.Type {
	case "A":
		if !r.Addr.Is4() {
			return hr, fmt.Errorf("A record needs an IPv4 address; got %s", r.Addr)
		}
		hr.IPv4 = r.Addr.String()
	case "AAAA":
		if !r.Addr.Is6() {
			return hr, fmt.Errorf("AAAA record needs an IPv6 address; got %s", r.Addr)
		}
		hr.IPv6 = r.Addr.String()
	default:
		return hr, fmt.Errorf("unsupported record type %q", r.Type)
	}
	return hr, nil
}

func (hr hosttechRecord) record(zone Zone) (Record, error) {
	r := Record{
		ID:      strconv.Itoa(hr.ID),
		Type:    strings.ToUpper(hr.Type),
		Name:    FromRelative(hr.Name, zone.Name),
		TTL:     hr.TTL,
		Comment: hr.Comment,
	}
	value := hr.IPv4
	if r.Type == "AAAA" {
		value = hr.IPv6
	}
	if value == "" {
		return r, nil
	}
	a, err := netip.ParseAddr(value)
	if err != nil {
		return r, fmt.Errorf("error parsing IP from record %d: %w", hr.ID, err)
	}
	r.Addr = a
	return r, nil
}

func sameRelativeName(got, want string) bool {
	if want == "" {
		return got == "" || got == "@"
	}
	return strings.EqualFold(got, want)
}

// do sends a JSON request and decodes the "data" member of the response into out.
func (p *hosttechProvider) do(ctx context.Context, method, path string, query url.Values, body, out any, expect ...int) error {
	ctx, cancel := context.WithTimeout(ctx, hosttechRequestTimeout)
	defer cancel()

	u := strings.TrimRight(p.endpoint, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpclient := p.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	p.logger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("sending request")
	resp, err := httpclient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if !statusIn(resp.StatusCode, expect) {
		return fmt.Errorf("%s %s: %w", method, path, readHosttechError(resp))
	}
	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s %s: error decoding response: %w", method, path, err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("%s %s: response has no data", method, path)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%s %s: error decoding response data: %w", method, path, err)
	}
	return nil
}

func statusIn(code int, expect []int) bool {
	for _, e := range expect {
		if code == e {
			return true
		}
	}
	return false
}

func readHosttechError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body hosttechErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
