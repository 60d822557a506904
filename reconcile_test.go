package ddns

import (
	"net/netip"
	"testing"
)

func TestKeepPolicySplit(t *testing.T) {
	want := netip.MustParseAddr("5.6.7.8")
	records := []Record{
		{ID: "10", Addr: netip.MustParseAddr("5.6.7.8")},
		{ID: "9", Addr: netip.MustParseAddr("1.1.1.1")},
		{ID: "11", Addr: netip.MustParseAddr("2.2.2.2")},
	}
	tests := []struct {
		policy KeepPolicy
		keep   string
	}{
		{KeepLowestID, "9"},
		{KeepMatching, "10"},
	}
	for _, tt := range tests {
		keep, remove := tt.policy.split(records, want)
		if keep.ID != tt.keep {
			t.Errorf("%s: Expected to keep %q; got %q", tt.policy, tt.keep, keep.ID)
		}
		if len(remove) != 2 {
			t.Errorf("%s: Expected 2 records to remove; got %d", tt.policy, len(remove))
		}
		for _, r := range remove {
			if r.ID == keep.ID {
				t.Errorf("%s: survivor %q is also scheduled for removal", tt.policy, keep.ID)
			}
		}
	}
	if records[0].ID != "10" {
		t.Errorf("split must not reorder its input")
	}
}

func TestKeepMatchingFallsBackToLowestID(t *testing.T) {
	records := []Record{
		{ID: "20", Addr: netip.MustParseAddr("1.1.1.1")},
		{ID: "3", Addr: netip.MustParseAddr("2.2.2.2")},
	}
	keep, _ := KeepMatching.split(records, netip.MustParseAddr("5.6.7.8"))
	if keep.ID != "3" {
		t.Fatalf("Expected %q; got %q", "3", keep.ID)
	}
}

func TestIDLess(t *testing.T) {
	tests := []struct {
		a, b string
		less bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"abc", "abd", true},
		{"10", "9a", true},
	}
	for _, tt := range tests {
		if got := idLess(tt.a, tt.b); got != tt.less {
			t.Errorf("idLess(%q, %q): Expected %v; got %v", tt.a, tt.b, tt.less, got)
		}
	}
}

func TestParseKeepPolicy(t *testing.T) {
	tests := map[string]KeepPolicy{
		"":          KeepLowestID,
		"lowest-id": KeepLowestID,
		"Matching":  KeepMatching,
	}
	for in, expected := range tests {
		got, err := ParseKeepPolicy(in)
		if err != nil {
			t.Errorf("ParseKeepPolicy(%q) failed: %s", in, err)
			continue
		}
		if got != expected {
			t.Errorf("ParseKeepPolicy(%q): Expected %s; got %s", in, expected, got)
		}
	}
	if _, err := ParseKeepPolicy("newest"); err == nil {
		t.Errorf("Expected an error for an unknown policy")
	}
}

func TestPickAddrs(t *testing.T) {
	tests := []struct {
		in       []string
		expected []string
	}{
		{[]string{"192.168.1.10", "5.6.7.8"}, []string{"5.6.7.8"}},
		{[]string{"5.6.7.8", "9.9.9.9"}, []string{"5.6.7.8"}},
		{[]string{"fe80::1", "2606:4700::1", "5.6.7.8"}, []string{"5.6.7.8", "2606:4700::1"}},
		{[]string{"127.0.0.1", "::1", "0.0.0.0"}, nil},
		{[]string{"::ffff:5.6.7.8"}, []string{"5.6.7.8"}},
		{[]string{"10.0.0.1"}, []string{"10.0.0.1"}},
	}
	for _, tt := range tests {
		var in []netip.Addr
		for _, s := range tt.in {
			in = append(in, netip.MustParseAddr(s))
		}
		got := pickAddrs(in)
		if len(got) != len(tt.expected) {
			t.Errorf("pickAddrs(%v): Expected %v; got %v", tt.in, tt.expected, got)
			continue
		}
		for i := range got {
			if got[i].String() != tt.expected[i] {
				t.Errorf("pickAddrs(%v): Expected %v; got %v", tt.in, tt.expected, got)
			}
		}
	}
}
