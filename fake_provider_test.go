package ddns_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	ddns "github.com/Travis-Britz/ddns-hosttech"
)

// fakeProvider is an in-memory ddns.Provider which counts mutating calls.
type fakeProvider struct {
	mu      sync.Mutex
	zones   []ddns.Zone
	records map[string][]ddns.Record // by zone ID
	nextID  int

	creates, updates, deletes int
	lists                     int

	// zoneErr fails FindZone for a domain.
	zoneErr map[ddns.Domain]error
	// deleteErr fails every DeleteRecord call.
	deleteErr error
	// updateEcho overrides the address returned by UpdateRecord.
	updateEcho string
	// updateEchoID overrides the record ID returned by UpdateRecord.
	updateEchoID string
}

func newFakeProvider(zones ...string) *fakeProvider {
	p := &fakeProvider{records: map[string][]ddns.Record{}, nextID: 100}
	for i, z := range zones {
		p.zones = append(p.zones, ddns.Zone{ID: strconv.Itoa(i + 1), Name: z})
	}
	return p
}

// add stores a record without counting it as a mutation.
func (p *fakeProvider) add(zoneID, id, typ, name, addr string) {
	d, err := ddns.ParseDomain(name)
	if err != nil {
		panic(err)
	}
	p.records[zoneID] = append(p.records[zoneID], ddns.Record{
		ID:   id,
		Type: typ,
		Name: d,
		Addr: mustAddr(addr),
		TTL:  3600,
	})
}

func (p *fakeProvider) mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates + p.updates + p.deletes
}

// matching returns the stored records of zone with the given name and type, ordered by ID.
func (p *fakeProvider) matching(zoneID, typ, name string) []ddns.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ddns.Record
	for _, r := range p.records[zoneID] {
		if r.Type == typ && string(r.Name) == name {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *fakeProvider) FindZone(ctx context.Context, domain ddns.Domain) (ddns.Zone, error) {
	if err := p.zoneErr[domain]; err != nil {
		return ddns.Zone{}, err
	}
	var best ddns.Zone
	for _, z := range p.zones {
		if domain.InZone(z.Name) && len(z.Name) > len(best.Name) {
			best = z
		}
	}
	if best.ID == "" {
		return ddns.Zone{}, ddns.ErrZoneNotFound
	}
	return best, nil
}

func (p *fakeProvider) ListRecords(ctx context.Context, zone ddns.Zone, domain ddns.Domain, recordType string) ([]ddns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists++
	var out []ddns.Record
	for _, r := range p.records[zone.ID] {
		if r.Type == recordType && r.Name == domain {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *fakeProvider) CreateRecord(ctx context.Context, zone ddns.Zone, r ddns.Record) (ddns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	p.nextID++
	r.ID = strconv.Itoa(p.nextID)
	p.records[zone.ID] = append(p.records[zone.ID], r)
	return r, nil
}

func (p *fakeProvider) UpdateRecord(ctx context.Context, zone ddns.Zone, r ddns.Record) (ddns.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates++
	for i, existing := range p.records[zone.ID] {
		if existing.ID == r.ID {
			p.records[zone.ID][i] = r
			if p.updateEcho != "" {
				r.Addr = mustAddr(p.updateEcho)
			}
			if p.updateEchoID != "" {
				r.ID = p.updateEchoID
			}
			return r, nil
		}
	}
	return ddns.Record{}, fmt.Errorf("record %s not found", r.ID)
}

func (p *fakeProvider) DeleteRecord(ctx context.Context, zone ddns.Zone, r ddns.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes++
	if p.deleteErr != nil {
		return p.deleteErr
	}
	records := p.records[zone.ID]
	for i, existing := range records {
		if existing.ID == r.ID {
			p.records[zone.ID] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record %s not found", r.ID)
}
