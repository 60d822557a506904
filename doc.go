/*
Package ddns keeps DNS records pointed at the current public address of the host.

Usage will always start with [ddns.New],
which returns the DDNSClient implementation.
New requires the domain names which will be updated and a [Provider] implementation for a DNS provider,
normally [UsingHosttech].
Additional client configuration options are listed in the docs for New.

Each call to RunDDNS is one reconciliation cycle:
the [Resolver] is asked for the current addresses,
and for every domain exactly one A record (and one AAAA record, when an IPv6 address was found)
is left holding that address.
Missing records are created, stale ones updated, and duplicates deleted.
[Run] repeats cycles according to a [Schedule].
*/
package ddns
