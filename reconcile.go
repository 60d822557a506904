package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// KeepPolicy decides which record survives when several records share a name and type.
type KeepPolicy int

const (
	// KeepLowestID keeps the record with the lowest ID, which is usually the oldest one.
	KeepLowestID KeepPolicy = iota
	// KeepMatching keeps a record which already holds the current address,
	// falling back to the lowest ID.
	KeepMatching
)

// ParseKeepPolicy parses "lowest-id" or "matching".
func ParseKeepPolicy(s string) (KeepPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lowest-id":
		return KeepLowestID, nil
	case "matching":
		return KeepMatching, nil
	}
	return 0, fmt.Errorf("unknown keep policy %q: expected \"lowest-id\" or \"matching\"", s)
}

func (p KeepPolicy) String() string {
	switch p {
	case KeepLowestID:
		return "lowest-id"
	case KeepMatching:
		return "matching"
	}
	return "KeepPolicy(" + strconv.Itoa(int(p)) + ")"
}

// split orders records by preference and returns the survivor and the records to delete.
func (p KeepPolicy) split(records []Record, want netip.Addr) (keep Record, remove []Record) {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if p == KeepMatching {
			mi, mj := sorted[i].Addr == want, sorted[j].Addr == want
			if mi != mj {
				return mi
			}
		}
		return idLess(sorted[i].ID, sorted[j].ID)
	})
	return sorted[0], sorted[1:]
}

// idLess compares numerically when both IDs are integers.
func idLess(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

func (c *client) reconcile(ctx context.Context, d Domain, addrs []netip.Addr) error {
	zone, err := c.FindZone(ctx, d)
	if err != nil {
		return fmt.Errorf("unable to get zone for %s: %w", d, err)
	}
	c.logger.WithFields(logrus.Fields{"domain": d, "zone": zone.Name}).Debugf("got zone ID: %s", zone.ID)

	var errs []error
	for _, a := range addrs {
		if err := c.reconcileRecord(ctx, zone, d, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reconcileRecord makes sure exactly one record of the address' type exists for d and holds addr.
func (c *client) reconcileRecord(ctx context.Context, zone Zone, d Domain, addr netip.Addr) error {
	typ := recordType(addr)
	log := c.logger.WithFields(logrus.Fields{"domain": d, "type": typ, "addr": addr})

	log.Debugf("looking up %s records for zone %s...", typ, zone.ID)
	records, err := c.ListRecords(ctx, zone, d, typ)
	if err != nil {
		return fmt.Errorf("error listing %s records: %w", typ, err)
	}
	log.Debugf("found %d existing records: %+v", len(records), records)

	var errs []error
	if len(records) > 1 {
		keep, dups := c.keep.split(records, addr)
		log.WithField("keep", keep.ID).Warnf("found %d duplicate %s records", len(dups), typ)
		for _, r := range dups {
			if err := c.deleteRecord(ctx, zone, r, log); err != nil {
				errs = append(errs, fmt.Errorf("unable to delete duplicate %s record %s: %w", typ, r.ID, err))
			}
		}
		records = []Record{keep}
	}

	switch {
	case len(records) == 0:
		if err := c.createRecord(ctx, zone, d, addr, log); err != nil {
			errs = append(errs, fmt.Errorf("error creating %s record: %w", typ, err))
		}
	case records[0].Addr == addr:
		log.WithField("record", records[0].ID).Info("record already up to date")
	default:
		if err := c.updateRecord(ctx, zone, records[0], addr, log); err != nil {
			errs = append(errs, fmt.Errorf("error updating %s record %s: %w", typ, records[0].ID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *client) createRecord(ctx context.Context, zone Zone, d Domain, addr netip.Addr, log logrus.FieldLogger) error {
	r := Record{
		Type:    recordType(addr),
		Name:    d,
		Addr:    addr,
		TTL:     c.ttl,
		Comment: c.comment,
	}
	if c.dryRun {
		log.Info("dry run: would create record")
		return nil
	}
	log.Debug("creating record...")
	created, err := c.CreateRecord(ctx, zone, r)
	if err != nil {
		return err
	}
	log.WithField("record", created.ID).Info("created record")
	return nil
}

func (c *client) updateRecord(ctx context.Context, zone Zone, r Record, addr netip.Addr, log logrus.FieldLogger) error {
	log = log.WithFields(logrus.Fields{"record": r.ID, "previous": r.Addr})
	if c.dryRun {
		log.Info("dry run: would update record")
		return nil
	}
	log.Debug("updating record...")
	r.Addr = addr
	updated, err := c.UpdateRecord(ctx, zone, r)
	if err != nil {
		return err
	}
	if updated.ID != r.ID || updated.Type != r.Type || updated.Name != r.Name {
		return fmt.Errorf("provider returned %s record %s for %s after update; expected %s record %s for %s",
			updated.Type, updated.ID, updated.Name, r.Type, r.ID, r.Name)
	}
	if updated.Addr != addr {
		return fmt.Errorf("provider returned %s after update; expected %s", updated.Addr, addr)
	}
	log.Info("updated record")
	return nil
}

func (c *client) deleteRecord(ctx context.Context, zone Zone, r Record, log logrus.FieldLogger) error {
	log = log.WithFields(logrus.Fields{"record": r.ID, "value": r.Addr})
	if c.dryRun {
		log.Info("dry run: would delete duplicate record")
		return nil
	}
	if err := c.DeleteRecord(ctx, zone, r); err != nil {
		log.WithError(err).Error("could not delete duplicate record")
		return err
	}
	log.Info("deleted duplicate record")
	return nil
}
