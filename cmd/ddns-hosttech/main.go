// Command ddns-hosttech keeps A and AAAA records at Hosttech (or Cloudflare) pointed at the public address of this host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	ddns "github.com/Travis-Britz/ddns-hosttech"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var version = "dev"

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	// .env never overrides variables that are already set
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, lookupEnv lookupEnvFunc, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args, lookupEnv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err)
		return exitConfig
	}
	if cfg.Version {
		fmt.Fprintf(stdout, "ddns-hosttech %s\n", version)
		return exitOK
	}

	logger := newLogger(cfg, stderr)
	logger.WithField("version", version).Debug("starting ddns-hosttech")

	if cfg.Token == "" && cfg.TokenFile != "" {
		if cfg.Token, err = readKey(cfg.TokenFile); err != nil {
			logger.WithError(err).Error("unable to read token file")
			return exitConfig
		}
		logger.Debug("successfully read token from token file")
	}
	if cfg.Token == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		if cfg.Token, err = promptToken(stderr); err != nil {
			logger.WithError(err).Error("unable to read token")
			return exitConfig
		}
	}
	if err := cfg.validate(); err != nil {
		logger.WithError(err).Error("invalid configuration")
		return exitConfig
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		return exitConfig
	}

	schedule, clamped := cfg.schedule()
	if clamped {
		logger.Warnf("interval %s is too short; using %s", cfg.Interval, minInterval)
	}
	logger.WithFields(logrus.Fields{
		"domains":  cfg.Domains,
		"provider": cfg.Provider,
		"schedule": schedule,
		"dry_run":  cfg.DryRun,
	}).Info("starting DDNS updater")

	if err := ddns.Run(ctx, client, schedule, logger); err != nil {
		return exitFailed
	}
	return exitOK
}

func newClient(cfg config, logger logrus.FieldLogger) (ddns.DDNSClient, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}
	provider := ddns.UsingHosttech(cfg.Token)
	if cfg.Provider == "cloudflare" {
		provider = ddns.UsingCloudflare(cfg.Token)
	}
	options := []ddns.Option{
		provider,
		ddns.UsingResolver(resolver),
		ddns.WithLogger(logger),
		ddns.WithTTL(cfg.TTL),
		ddns.WithKeepPolicy(cfg.Keep),
		ddns.WithDryRun(cfg.DryRun),
	}
	if cfg.Endpoint != "" {
		options = append(options, ddns.WithEndpoint(cfg.Endpoint))
	}
	return ddns.New(cfg.Domains, options...)
}

func newResolver(cfg config) (ddns.Resolver, error) {
	var r ddns.Resolver
	switch {
	case len(cfg.StaticIPs) > 0:
		static, err := ddns.FromString(cfg.StaticIPs...)
		if err != nil {
			return nil, err
		}
		r = static
	case len(cfg.Interfaces) > 0:
		r = ddns.InterfaceResolver(cfg.Interfaces...)
	default:
		return ddns.LookupResolver(cfg.Lookup, !cfg.NoIPv6)
	}
	if cfg.NoIPv6 {
		r = ddns.IPv4Only(r)
	}
	return r, nil
}

func newLogger(cfg config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func promptToken(out io.Writer) (string, error) {
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Fprint(out, "Enter API token: ")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return string(bytekey), nil
}
