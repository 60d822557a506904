package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	ddns "github.com/Travis-Britz/ddns-hosttech"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval = 5 * time.Minute
	minInterval     = 1 * time.Minute
)

type config struct {
	Token      string
	TokenFile  string
	Domains    []string
	Interval   time.Duration
	Once       bool
	Provider   string
	Endpoint   string
	TTL        int
	Keep       ddns.KeepPolicy
	StaticIPs  []string
	Interfaces []string
	Lookup     string
	NoIPv6     bool
	ConfigFile string
	DryRun     bool
	Verbose    bool
	LogFormat  string
	Version    bool
}

// fileConfig is the YAML config file layout.
type fileConfig struct {
	Token     string   `yaml:"token"`
	TokenFile string   `yaml:"token_file"`
	Domains   []string `yaml:"domains"`
	Interval  int      `yaml:"interval"`
	Provider  string   `yaml:"provider"`
	Endpoint  string   `yaml:"endpoint"`
	TTL       int      `yaml:"ttl"`
	Keep      string   `yaml:"keep"`
	Lookup    string   `yaml:"lookup"`
	NoIPv6    bool     `yaml:"no_ipv6"`
	LogFormat string   `yaml:"log_format"`
	Verbose   bool     `yaml:"verbose"`
}

// listFlag collects repeated flags; each value may hold a comma separated list.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, splitList(s)...)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type lookupEnvFunc func(string) (string, bool)

// loadConfig builds the configuration from defaults, the YAML file, the environment and args,
// each overriding the previous one.
func loadConfig(args []string, lookupEnv lookupEnvFunc, output io.Writer) (config, error) {
	var fl config
	var domains, ips, ifaces listFlag
	var intervalMinutes int
	var keep string

	flags := flag.NewFlagSet("ddns-hosttech", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&fl.Token, "t", "", "shorthand for -token")
	flags.StringVar(&fl.Token, "token", "", "API token (env TOKEN)")
	flags.StringVar(&fl.TokenFile, "token-file", "", "file containing the API token, mode 0600 (env TOKEN_FILE)")
	flags.Var(&domains, "d", "shorthand for -domain")
	flags.Var(&domains, "domain", "domain to update, repeatable or comma separated (env DOMAINS)")
	flags.IntVar(&intervalMinutes, "i", 0, "shorthand for -interval")
	flags.IntVar(&intervalMinutes, "interval", 0, "update interval in minutes (env INTERVAL, default 5)")
	flags.BoolVar(&fl.Once, "no-interval", false, "run a single update and exit")
	flags.StringVar(&fl.Provider, "provider", "", "DNS provider: hosttech or cloudflare (env PROVIDER)")
	flags.StringVar(&fl.Endpoint, "endpoint", "", "override the provider API base URL (env ENDPOINT)")
	flags.IntVar(&fl.TTL, "ttl", 0, "TTL of created records in seconds (env TTL, default 3600)")
	flags.StringVar(&keep, "keep", "", "which duplicate record survives: lowest-id or matching (env KEEP)")
	flags.Var(&ips, "ip", "static IP address to set instead of looking it up, repeatable")
	flags.Var(&ifaces, "iface", "use the addresses of this network interface, repeatable")
	flags.StringVar(&fl.Lookup, "lookup", "", "public IP lookup method: web or dns (env LOOKUP)")
	flags.BoolVar(&fl.NoIPv6, "no-ipv6", false, "only manage A records (env NO_IPV6)")
	flags.StringVar(&fl.ConfigFile, "config", "", "YAML config file (env CONFIG)")
	flags.BoolVar(&fl.DryRun, "dry-run", false, "log changes without making them")
	flags.BoolVar(&fl.Verbose, "verbose", false, "enable debug logging (env VERBOSE)")
	flags.StringVar(&fl.LogFormat, "log-format", "", "log format: text or json (env LOG_FORMAT)")
	flags.BoolVar(&fl.Version, "v", false, "shorthand for -version")
	flags.BoolVar(&fl.Version, "version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return config{}, err
	}
	if flags.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[canonicalFlag(f.Name)] = true })

	cfg := config{
		Interval:  defaultInterval,
		Provider:  "hosttech",
		TTL:       ddns.DefaultTTL,
		Lookup:    "web",
		LogFormat: "text",
	}

	cfg.ConfigFile = env(lookupEnv, "CONFIG", "")
	if set["config"] {
		cfg.ConfigFile = fl.ConfigFile
	}
	if cfg.ConfigFile != "" {
		if err := applyFile(&cfg, cfg.ConfigFile); err != nil {
			return config{}, err
		}
	}

	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return config{}, err
	}

	var token, tokenFile string
	if set["token"] {
		token = fl.Token
	}
	if set["token-file"] {
		tokenFile = fl.TokenFile
	}
	cfg.setToken(token, tokenFile)
	if set["domain"] {
		cfg.Domains = domains
	}
	if set["interval"] {
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute
	}
	if set["provider"] {
		cfg.Provider = fl.Provider
	}
	if set["endpoint"] {
		cfg.Endpoint = fl.Endpoint
	}
	if set["ttl"] {
		cfg.TTL = fl.TTL
	}
	if set["keep"] {
		p, err := ddns.ParseKeepPolicy(keep)
		if err != nil {
			return config{}, err
		}
		cfg.Keep = p
	}
	if set["lookup"] {
		cfg.Lookup = fl.Lookup
	}
	if set["no-ipv6"] {
		cfg.NoIPv6 = fl.NoIPv6
	}
	if set["verbose"] {
		cfg.Verbose = fl.Verbose
	}
	if set["log-format"] {
		cfg.LogFormat = fl.LogFormat
	}
	cfg.Once = fl.Once
	cfg.DryRun = fl.DryRun
	cfg.Version = fl.Version
	cfg.StaticIPs = ips
	cfg.Interfaces = ifaces
	return cfg, nil
}

func canonicalFlag(name string) string {
	switch name {
	case "t":
		return "token"
	case "d":
		return "domain"
	case "i":
		return "interval"
	case "v":
		return "version"
	}
	return name
}

func applyFile(cfg *config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	cfg.setToken(fc.Token, fc.TokenFile)
	if len(fc.Domains) > 0 {
		cfg.Domains = fc.Domains
	}
	if fc.Interval != 0 {
		cfg.Interval = time.Duration(fc.Interval) * time.Minute
	}
	if fc.Provider != "" {
		cfg.Provider = fc.Provider
	}
	if fc.Endpoint != "" {
		cfg.Endpoint = fc.Endpoint
	}
	if fc.TTL != 0 {
		cfg.TTL = fc.TTL
	}
	if fc.Keep != "" {
		p, err := ddns.ParseKeepPolicy(fc.Keep)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Keep = p
	}
	if fc.Lookup != "" {
		cfg.Lookup = fc.Lookup
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	cfg.NoIPv6 = cfg.NoIPv6 || fc.NoIPv6
	cfg.Verbose = cfg.Verbose || fc.Verbose
	return nil
}

func applyEnv(cfg *config, lookupEnv lookupEnvFunc) error {
	cfg.setToken(env(lookupEnv, "TOKEN", ""), env(lookupEnv, "TOKEN_FILE", ""))
	if d := splitList(env(lookupEnv, "DOMAINS", "")); len(d) > 0 {
		cfg.Domains = d
	}
	if v, ok := lookupEnv("INTERVAL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid INTERVAL %q: %w", v, err)
		}
		cfg.Interval = time.Duration(n) * time.Minute
	}
	cfg.Provider = env(lookupEnv, "PROVIDER", cfg.Provider)
	cfg.Endpoint = env(lookupEnv, "ENDPOINT", cfg.Endpoint)
	if v, ok := lookupEnv("TTL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TTL %q: %w", v, err)
		}
		cfg.TTL = n
	}
	if v, ok := lookupEnv("KEEP"); ok && v != "" {
		p, err := ddns.ParseKeepPolicy(v)
		if err != nil {
			return err
		}
		cfg.Keep = p
	}
	cfg.Lookup = env(lookupEnv, "LOOKUP", cfg.Lookup)
	cfg.LogFormat = env(lookupEnv, "LOG_FORMAT", cfg.LogFormat)
	var err error
	if cfg.NoIPv6, err = envBool(lookupEnv, "NO_IPV6", cfg.NoIPv6); err != nil {
		return err
	}
	if cfg.Verbose, err = envBool(lookupEnv, "VERBOSE", cfg.Verbose); err != nil {
		return err
	}
	return nil
}

// setToken applies the token settings of one configuration layer.
// The token and the token file are one setting: whichever a layer names replaces
// both values of the layers below it. When a layer names both, the token wins in run.
func (c *config) setToken(token, tokenFile string) {
	switch {
	case token != "" && tokenFile != "":
		c.Token, c.TokenFile = token, tokenFile
	case token != "":
		c.Token, c.TokenFile = token, ""
	case tokenFile != "":
		c.Token, c.TokenFile = "", tokenFile
	}
}

func env(lookupEnv lookupEnvFunc, envvar string, defaultvalue string) string {
	e, found := lookupEnv(envvar)
	if found && e != "" {
		return e
	}
	return defaultvalue
}

func envBool(lookupEnv lookupEnvFunc, envvar string, defaultvalue bool) (bool, error) {
	e, found := lookupEnv(envvar)
	if !found || e == "" {
		return defaultvalue, nil
	}
	b, err := strconv.ParseBool(e)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", envvar, e, err)
	}
	return b, nil
}

// validate reports configuration errors. It runs after the token has been read or prompted for.
func (c *config) validate() error {
	if c.Token == "" {
		return errors.New("token is required: provide it with -t/-token, -token-file or the TOKEN environment variable")
	}
	if len(c.Domains) == 0 {
		return errors.New("at least one domain is required: provide it with -d/-domain or the DOMAINS environment variable")
	}
	for _, d := range c.Domains {
		if _, err := ddns.ParseDomain(d); err != nil {
			return err
		}
	}
	switch c.Provider {
	case "hosttech", "cloudflare":
	default:
		return fmt.Errorf("unknown provider %q: expected \"hosttech\" or \"cloudflare\"", c.Provider)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q: expected \"text\" or \"json\"", c.LogFormat)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive; got %d", c.TTL)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval cannot be negative; got %s", c.Interval)
	}
	if len(c.StaticIPs) > 0 && len(c.Interfaces) > 0 {
		return errors.New("-ip and -iface cannot be combined")
	}
	return nil
}

// schedule clamps the interval to minInterval so the provider API is not hammered.
func (c *config) schedule() (s ddns.Schedule, clamped bool) {
	if c.Once {
		return ddns.Once, false
	}
	if c.Interval < minInterval {
		return ddns.Interval(minInterval), true
	}
	return ddns.Interval(c.Interval), false
}

// readKey returns the first line of the file at path.
func readKey(path string) (key string, err error) {
	if err := verifyPermissions(path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	return strings.TrimSpace(string(keyb)), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking token file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
