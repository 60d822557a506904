// Command whatismyip prints the addresses ddns-hosttech would publish, one per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	ddns "github.com/Travis-Britz/ddns-hosttech"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		lookup  = flag.String("lookup", "web", "public IP lookup method: web or dns")
		iface   = flag.String("iface", "", "comma separated interfaces to read addresses from instead of a lookup")
		noIPv6  = flag.Bool("no-ipv6", false, "only look up the IPv4 address")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var resolver ddns.Resolver
	if *iface != "" {
		resolver = ddns.InterfaceResolver(strings.Split(*iface, ",")...)
		if *noIPv6 {
			resolver = ddns.IPv4Only(resolver)
		}
	} else {
		r, err := ddns.LookupResolver(*lookup, !*noIPv6)
		if err != nil {
			logger.Fatal(err)
		}
		resolver = r
	}
	if s, ok := resolver.(interface{ SetLogger(logrus.FieldLogger) }); ok {
		s.SetLogger(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	addrs, err := resolver.Resolve(ctx)
	if err != nil {
		logger.WithError(err).Fatal("lookup failed")
	}
	for _, a := range addrs {
		fmt.Println(a)
	}
}
