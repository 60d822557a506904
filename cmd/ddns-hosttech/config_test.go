package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	ddns "github.com/Travis-Britz/ddns-hosttech"
)

func envMap(m map[string]string) lookupEnvFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("unable to write %s: %s", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("unable to chmod %s: %s", path, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("loadConfig failed: %s", err)
	}
	if cfg.Provider != "hosttech" || cfg.Interval != defaultInterval || cfg.TTL != ddns.DefaultTTL || cfg.Lookup != "web" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Keep != ddns.KeepLowestID {
		t.Fatalf("Expected keep policy %s; got %s", ddns.KeepLowestID, cfg.Keep)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	file := writeFile(t, "config.yaml", `
token: from-file
domains:
  - file.example.com
interval: 10
ttl: 600
keep: matching
lookup: dns
`, 0600)

	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		token    string
		domains  []string
		interval time.Duration
		ttl      int
	}{
		{
			name:     "file",
			args:     []string{"-config", file},
			token:    "from-file",
			domains:  []string{"file.example.com"},
			interval: 10 * time.Minute,
			ttl:      600,
		},
		{
			name:     "env over file",
			env:      map[string]string{"CONFIG": file, "TOKEN": "from-env", "DOMAINS": "a.example.com, b.example.com", "TTL": "900"},
			token:    "from-env",
			domains:  []string{"a.example.com", "b.example.com"},
			interval: 10 * time.Minute,
			ttl:      900,
		},
		{
			name:     "flags over env",
			args:     []string{"-t", "from-flag", "-d", "c.example.com", "-i", "2", "-ttl", "120"},
			env:      map[string]string{"CONFIG": file, "TOKEN": "from-env", "DOMAINS": "a.example.com", "INTERVAL": "30"},
			token:    "from-flag",
			domains:  []string{"c.example.com"},
			interval: 2 * time.Minute,
			ttl:      120,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(tt.args, envMap(tt.env), io.Discard)
			if err != nil {
				t.Fatalf("loadConfig failed: %s", err)
			}
			if cfg.Token != tt.token {
				t.Errorf("Expected token %q; got %q", tt.token, cfg.Token)
			}
			if !reflect.DeepEqual(cfg.Domains, tt.domains) {
				t.Errorf("Expected domains %q; got %q", tt.domains, cfg.Domains)
			}
			if cfg.Interval != tt.interval {
				t.Errorf("Expected interval %s; got %s", tt.interval, cfg.Interval)
			}
			if cfg.TTL != tt.ttl {
				t.Errorf("Expected ttl %d; got %d", tt.ttl, cfg.TTL)
			}
			if cfg.Keep != ddns.KeepMatching || cfg.Lookup != "dns" {
				t.Errorf("Expected the file's keep policy and lookup to survive; got %s and %s", cfg.Keep, cfg.Lookup)
			}
		})
	}
}

func TestTokenSourcePrecedence(t *testing.T) {
	yamlFile := writeFile(t, "config.yaml", "token: from-yaml\n", 0600)

	tests := []struct {
		name      string
		args      []string
		env       map[string]string
		token     string
		tokenFile string
	}{
		{
			name:      "flag token file over env token",
			args:      []string{"-token-file", "/run/secrets/token"},
			env:       map[string]string{"TOKEN": "stale"},
			tokenFile: "/run/secrets/token",
		},
		{
			name:  "flag token over env token file",
			args:  []string{"-t", "from-flag"},
			env:   map[string]string{"TOKEN_FILE": "/run/secrets/token"},
			token: "from-flag",
		},
		{
			name:      "env token file over yaml token",
			env:       map[string]string{"CONFIG": yamlFile, "TOKEN_FILE": "/run/secrets/token"},
			tokenFile: "/run/secrets/token",
		},
		{
			name:      "both in one layer",
			env:       map[string]string{"TOKEN": "from-env", "TOKEN_FILE": "/run/secrets/token"},
			token:     "from-env",
			tokenFile: "/run/secrets/token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(tt.args, envMap(tt.env), io.Discard)
			if err != nil {
				t.Fatalf("loadConfig failed: %s", err)
			}
			if cfg.Token != tt.token || cfg.TokenFile != tt.tokenFile {
				t.Fatalf("Expected token %q and token file %q; got %q and %q", tt.token, tt.tokenFile, cfg.Token, cfg.TokenFile)
			}
		})
	}
}

func TestDomainFlagIsRepeatable(t *testing.T) {
	cfg, err := loadConfig([]string{"-d", "a.example.com,b.example.com", "-domain", "c.example.com"}, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("loadConfig failed: %s", err)
	}
	expected := []string{"a.example.com", "b.example.com", "c.example.com"}
	if !reflect.DeepEqual(cfg.Domains, expected) {
		t.Fatalf("Expected %q; got %q", expected, cfg.Domains)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"unknown flag", []string{"-bogus"}, nil},
		{"extra argument", []string{"example.com"}, nil},
		{"bad interval env", nil, map[string]string{"INTERVAL": "soon"}},
		{"bad ttl env", nil, map[string]string{"TTL": "long"}},
		{"bad bool env", nil, map[string]string{"NO_IPV6": "maybe"}},
		{"bad keep flag", []string{"-keep", "newest"}, nil},
		{"missing config file", []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, nil},
	}
	for _, tt := range tests {
		if _, err := loadConfig(tt.args, envMap(tt.env), io.Discard); err == nil {
			t.Errorf("%s: Expected an error", tt.name)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() config {
		return config{
			Token:     "secret",
			Domains:   []string{"example.com"},
			Provider:  "hosttech",
			LogFormat: "text",
			TTL:       3600,
			Interval:  defaultInterval,
		}
	}
	if c := valid(); c.validate() != nil {
		t.Fatalf("Expected a valid config; got %s", c.validate())
	}

	tests := map[string]func(*config){
		"no token":       func(c *config) { c.Token = "" },
		"no domains":     func(c *config) { c.Domains = nil },
		"bad domain":     func(c *config) { c.Domains = []string{"localhost"} },
		"bad provider":   func(c *config) { c.Provider = "route53" },
		"bad log format": func(c *config) { c.LogFormat = "xml" },
		"zero ttl":       func(c *config) { c.TTL = 0 },
		"ip and iface":   func(c *config) { c.StaticIPs = []string{"5.6.7.8"}; c.Interfaces = []string{"eth0"} },
	}
	for name, modify := range tests {
		c := valid()
		modify(&c)
		if err := c.validate(); err == nil {
			t.Errorf("%s: Expected an error", name)
		}
	}
}

func TestSchedule(t *testing.T) {
	tests := []struct {
		cfg      config
		once     bool
		interval time.Duration
		clamped  bool
	}{
		{config{Once: true, Interval: time.Hour}, true, 0, false},
		{config{Interval: 10 * time.Minute}, false, 10 * time.Minute, false},
		{config{Interval: 0}, false, minInterval, true},
		{config{Interval: 30 * time.Second}, false, minInterval, true},
	}
	for _, tt := range tests {
		s, clamped := tt.cfg.schedule()
		if s.IsOnce() != tt.once || s.Interval() != tt.interval || clamped != tt.clamped {
			t.Errorf("%+v: Expected once=%v interval=%s clamped=%v; got %v %s %v",
				tt.cfg, tt.once, tt.interval, tt.clamped, s.IsOnce(), s.Interval(), clamped)
		}
	}
}

func TestReadKey(t *testing.T) {
	path := writeFile(t, "token", "  secret-token \nsecond line\n", 0600)
	key, err := readKey(path)
	if err != nil {
		t.Fatalf("readKey failed: %s", err)
	}
	if key != "secret-token" {
		t.Fatalf("Expected %q; got %q", "secret-token", key)
	}

	readonly := writeFile(t, "token-ro", "secret-token", 0400)
	if _, err := readKey(readonly); err != nil {
		t.Fatalf("Expected 0400 to be accepted; got %s", err)
	}

	open := writeFile(t, "token-open", "secret-token", 0644)
	if _, err := readKey(open); err == nil {
		t.Fatalf("Expected an error for a world readable token file")
	}
}

func TestNewResolver(t *testing.T) {
	r, err := newResolver(config{StaticIPs: []string{"5.6.7.8", "2606:4700::1"}, NoIPv6: true})
	if err != nil {
		t.Fatalf("newResolver failed: %s", err)
	}
	addrs, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "5.6.7.8" {
		t.Fatalf("Expected only the IPv4 address; got %v", addrs)
	}

	if _, err := newResolver(config{Lookup: "smoke-signals"}); err == nil {
		t.Fatalf("Expected an error for an unknown lookup method")
	}
}
