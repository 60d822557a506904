package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/sirupsen/logrus"
)

func newCloudflareProvider(token string) (cf *cloudflareProvider, err error) {
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = discard
	return cf, err
}

// cloudflareProvider implements ddns.Provider.
//
// It should be constructed using newCloudflareProvider.
type cloudflareProvider struct {
	api    *cloudflare.API
	logger logrus.FieldLogger
}

func (cf *cloudflareProvider) SetLogger(l logrus.FieldLogger) { cf.logger = l }

func (cf *cloudflareProvider) SetHTTPClient(hc *http.Client) {
	// HTTPClient never returns an error
	_ = cloudflare.HTTPClient(hc)(cf.api)
}

func (cf *cloudflareProvider) SetEndpoint(endpoint string) {
	_ = cloudflare.BaseURL(endpoint)(cf.api)
}

func (cf *cloudflareProvider) FindZone(ctx context.Context, domain Domain) (Zone, error) {
	if cf.api == nil {
		return Zone{}, errors.New("cloudflare provider should be constructed with ddns.UsingCloudflare")
	}
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return Zone{}, fmt.Errorf("error listing zones: %w", err)
	}

	var best Zone
	for _, z := range zones {
		if domain.InZone(z.Name) && len(z.Name) > len(best.Name) {
			best = Zone{ID: z.ID, Name: strings.ToLower(z.Name)}
		}
	}
	if best.ID == "" {
		return Zone{}, fmt.Errorf("unable to find a zone matching %q: %w", domain, ErrZoneNotFound)
	}
	return best, nil
}

func (cf *cloudflareProvider) ListRecords(ctx context.Context, zone Zone, domain Domain, recordType string) ([]Record, error) {
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: domain.String(),
	})
	if err != nil {
		return nil, err
	}
	cf.logger.Debugf("found %d existing records: %+v", len(records), records)

	var out []Record
	for _, r := range records {
		if !strings.EqualFold(r.Name, domain.String()) {
			continue
		}
		rec, err := fromCloudflare(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (cf *cloudflareProvider) CreateRecord(ctx context.Context, zone Zone, r Record) (Record, error) {
	created, err := cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.CreateDNSRecordParams{
		Type:    r.Type,
		Name:    r.Name.String(),
		Content: r.Addr.String(),
		TTL:     r.TTL,
		Comment: r.Comment,
	})
	if err != nil {
		return Record{}, err
	}
	return fromCloudflare(created)
}

func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, zone Zone, r Record) (Record, error) {
	updated, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.UpdateDNSRecordParams{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name.String(),
		Content: r.Addr.String(),
		TTL:     r.TTL,
	})
	if err != nil {
		return Record{}, err
	}
	return fromCloudflare(updated)
}

func (cf *cloudflareProvider) DeleteRecord(ctx context.Context, zone Zone, r Record) error {
	return cf.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zone.ID), r.ID)
}

func fromCloudflare(r cloudflare.DNSRecord) (Record, error) {
	a, err := netip.ParseAddr(r.Content)
	if err != nil {
		return Record{}, fmt.Errorf("error parsing IP from content: %w", err)
	}
	name, err := ParseDomain(r.Name)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:      r.ID,
		Type:    r.Type,
		Name:    name,
		Addr:    a,
		TTL:     r.TTL,
		Comment: r.Comment,
	}, nil
}
