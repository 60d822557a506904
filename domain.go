package ddns

import (
	"fmt"
	"strings"
)

// Domain is a normalized DNS name: lower case, no trailing dot.
// A leading "*." marks a wildcard, which is managed as a single record.
type Domain string

// ParseDomain validates and normalizes s.
func ParseDomain(s string) (Domain, error) {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if name == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}
	if !strings.Contains(name, ".") {
		return "", fmt.Errorf("domain %q must have at least one dot", s)
	}
	labels := strings.Split(name, ".")
	for i, l := range labels {
		switch {
		case l == "":
			return "", fmt.Errorf("domain %q has an empty label", s)
		case l == "*" && i != 0:
			return "", fmt.Errorf("domain %q: wildcard is only allowed as the first label", s)
		case strings.Contains(l, "*") && l != "*":
			return "", fmt.Errorf("domain %q: invalid wildcard label %q", s, l)
		case len(l) > 63:
			return "", fmt.Errorf("domain %q: label %q is longer than 63 characters", s, l)
		}
	}
	if labels[0] == "*" && len(labels) < 3 {
		return "", fmt.Errorf("domain %q: wildcard needs a parent domain with at least one dot", s)
	}
	return Domain(name), nil
}

func (d Domain) String() string { return string(d) }

func (d Domain) IsWildcard() bool { return strings.HasPrefix(string(d), "*.") }

// Base returns the domain without a wildcard prefix.
func (d Domain) Base() string { return strings.TrimPrefix(string(d), "*.") }

// InZone reports whether zone is the domain itself or one of its parents.
func (d Domain) InZone(zone string) bool {
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	if zone == "" {
		return false
	}
	base := d.Base()
	return base == zone || strings.HasSuffix(base, "."+zone)
}

// RelativeTo returns the record name inside zone:
// "" for the zone apex, "*" for a wildcard directly below the apex,
// and the leading labels otherwise ("www", "a.b", "*.sub").
func (d Domain) RelativeTo(zone string) string {
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	name := string(d)
	if name == zone {
		return ""
	}
	return strings.TrimSuffix(name, "."+zone)
}

// FromRelative builds the fully qualified domain for a zone-relative record name.
// Both "" and "@" denote the apex.
func FromRelative(name, zone string) Domain {
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	name = strings.ToLower(name)
	if name == "" || name == "@" {
		return Domain(zone)
	}
	return Domain(name + "." + zone)
}

// zoneCandidate is the shortest name worth searching zones for: the last two labels.
func (d Domain) zoneCandidate() string {
	labels := strings.Split(d.Base(), ".")
	if len(labels) <= 2 {
		return d.Base()
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
