// Copyright 2021 The forwarder Authors. All rights reserved.
// Use of this source code is governed by a MIT
// license that can be found in the LICENSE file.

package forwarder

import (
	"fmt"
	"net"
	"net/url"
)

// CredentialsMatcher matches a host:port pair against a set of per-site,
// host-wildcard, port-wildcard, or global credentials.
type CredentialsMatcher struct {
	m *userInfoMatcher
}

// NewCredentialsMatcher builds a CredentialsMatcher from a list of parsed
// host:port credentials. Host "*" matches any host, port "0" matches any port.
func NewCredentialsMatcher(credentials []*HostPortUser, log Logger) (*CredentialsMatcher, error) {
	if log == nil {
		log = NopLogger
	}

	m := &userInfoMatcher{
		hostport: make(map[string]*url.Userinfo),
		host:     make(map[string]*url.Userinfo),
		port:     make(map[string]*url.Userinfo),
		log:      log,
	}
	ok := false

	for _, c := range credentials {
		if c == nil {
			continue
		}

		switch {
		case c.Host == "*" && c.Port == "0":
			if m.global != nil {
				return nil, fmt.Errorf("duplicate global credentials")
			}
			m.global = c.Userinfo
		case c.Host == "*":
			if _, exists := m.port[c.Port]; exists {
				return nil, fmt.Errorf("duplicate wildcard host with port %s credentials", c.Port)
			}
			m.port[c.Port] = c.Userinfo
		case c.Port == "0":
			if _, exists := m.host[c.Host]; exists {
				return nil, fmt.Errorf("duplicate wildcard port with host %s credentials", c.Host)
			}
			m.host[c.Host] = c.Userinfo
		default:
			hostport := net.JoinHostPort(c.Host, c.Port)
			if _, exists := m.hostport[hostport]; exists {
				return nil, fmt.Errorf("duplicate credentials for %s", hostport)
			}
			m.hostport[hostport] = c.Userinfo
		}
		ok = true
	}

	if !ok {
		m = nil
	}

	return &CredentialsMatcher{m: m}, nil
}

// Match returns the credentials configured for hostport, or nil if none apply.
func (cm *CredentialsMatcher) Match(hostport string) *url.Userinfo {
	if cm == nil || cm.m == nil {
		return nil
	}
	return cm.m.Match(hostport)
}

// MatchURL returns the credentials configured for u.Host, or nil if none apply.
func (cm *CredentialsMatcher) MatchURL(u *url.URL) *url.Userinfo {
	return cm.Match(u.Host)
}
