// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DNSConfig configures a custom DNS resolver. When Servers is empty the
// system resolver is used and the other fields have no effect.
type DNSConfig struct {
	Servers    []*url.URL
	Timeout    time.Duration
	RoundRobin bool
}

func DefaultDNSConfig() *DNSConfig {
	return &DNSConfig{
		Timeout: 5 * time.Second,
	}
}

// ParseDNSServerURL parses a DNS server address, e.g. "1.1.1.1",
// "1.1.1.1:53" or "udp://1.1.1.1:53", into a URL with scheme "udp" or "tcp"
// defaulting to "udp" and port defaulting to 53.
func ParseDNSServerURL(val string) (*url.URL, error) {
	scheme, hostport, ok := strings.Cut(val, "://")
	if !ok {
		scheme, hostport = "udp", val
	}
	if scheme != "udp" && scheme != "tcp" {
		return nil, fmt.Errorf("unsupported scheme %q, supported schemes are: udp, tcp", scheme)
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, "53"
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	if net.ParseIP(host) == nil && !isDomainName(host) {
		return nil, fmt.Errorf("invalid host %q", host)
	}

	return &url.URL{Scheme: scheme, Host: net.JoinHostPort(host, port)}, nil
}

// NewResolver builds a *net.Resolver that sends queries to cfg.Servers
// instead of the system resolver. If RoundRobin is set, each dial rotates
// to the next configured server; otherwise the first server is always used
// and the rest serve as fallback is left to the caller (the standard
// library resolver does not retry across servers within one Dial call).
func NewResolver(cfg *DNSConfig, log Logger) (*net.Resolver, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no DNS servers configured")
	}
	if log == nil {
		log = NopLogger
	}

	servers := make([]string, len(cfg.Servers))
	for i, u := range cfg.Servers {
		servers[i] = u.Scheme + ":" + u.Host
	}

	var next uint32
	d := &net.Dialer{Timeout: cfg.Timeout}

	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			idx := 0
			if cfg.RoundRobin {
				idx = int(atomic.AddUint32(&next, 1)-1) % len(servers)
			}
			netProto, hostport, _ := strings.Cut(servers[idx], ":")

			log.Debugf("dialing DNS server %s", servers[idx])
			return d.DialContext(ctx, netProto, hostport)
		},
	}, nil
}
