// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	FilterIDRemapRequestHosts  FilterID = "remap-request-hosts"
	FilterIDRemapRedirectHosts FilterID = "remap-redirect-response-hosts"
)

// HostMapping pairs a publicly-addressed host with the internal host that
// actually serves it. The first mapping whose public hostname, port, and
// path prefix match a request wins.
type HostMapping struct {
	Public   *url.URL
	Internal *url.URL
}

// ParseHostMapping parses a "public=internal" string, where public and
// internal are URLs, into a HostMapping.
func ParseHostMapping(s string) (HostMapping, error) {
	pub, in, ok := strings.Cut(s, "=")
	if !ok {
		return HostMapping{}, fmt.Errorf("expected public=internal, got %q", s)
	}

	pu, err := url.Parse(pub)
	if err != nil {
		return HostMapping{}, fmt.Errorf("invalid public URL %q: %w", pub, err)
	}
	iu, err := url.Parse(in)
	if err != nil {
		return HostMapping{}, fmt.Errorf("invalid internal URL %q: %w", in, err)
	}

	return HostMapping{Public: pu, Internal: iu}, nil
}

// ParseHostMappings parses a list of "public=internal" strings.
func ParseHostMappings(items []string) ([]HostMapping, error) {
	mappings := make([]HostMapping, 0, len(items))
	for _, item := range items {
		m, err := ParseHostMapping(item)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func hostPortMatches(a, b *url.URL) bool {
	if a.Hostname() != b.Hostname() {
		return false
	}
	return portOrDefault(a) == portOrDefault(b)
}

func portOrDefault(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// RemapRequestHosts rewrites Request.URL on the first mapping whose public
// side matches, preserving the path suffix, query, and fragment, and
// records the winning mapping in Metadata[MetadataMappedURLs].
func RemapRequestHosts(mappings []HostMapping) Filter {
	return NewFilter(FilterIDRemapRequestHosts, func(_ context.Context, flow *Flow) ([]FilterID, error) {
		u := flow.Request.URL

		for _, m := range mappings {
			if !hostPortMatches(u, m.Public) || !strings.HasPrefix(u.Path, m.Public.Path) {
				continue
			}

			rewritten := *u
			rewritten.Scheme = m.Internal.Scheme
			rewritten.Host = m.Internal.Host
			rewritten.Path = m.Internal.Path + strings.TrimPrefix(u.Path, m.Public.Path)

			flow.Request.URL = &rewritten
			flow.Request.Host = m.Internal.Host
			flow.Metadata[MetadataMappedURLs] = &MappedURLs{Public: m.Public, Internal: m.Internal}
			break
		}

		return nil, nil
	})
}

// RemapRedirectResponseHosts rewrites a 3xx response's Location header by
// the inverse of the mapping recorded by RemapRequestHosts. It is a no-op
// unless a mapping was recorded for this flow and the response is 3xx.
func RemapRedirectResponseHosts() Filter {
	return NewFilter(FilterIDRemapRedirectHosts, func(_ context.Context, flow *Flow) ([]FilterID, error) {
		if flow.Response == nil || flow.Response.StatusCode < 300 || flow.Response.StatusCode >= 400 {
			return nil, nil
		}

		mapped, ok := flow.MappedURLs()
		if !ok {
			return nil, nil
		}

		loc := flow.Response.Header.Get("Location")
		if loc == "" {
			return nil, nil
		}

		lu, err := url.Parse(loc)
		if err != nil || !hostPortMatches(lu, mapped.Internal) {
			return nil, nil
		}

		rewritten := *lu
		rewritten.Scheme = mapped.Public.Scheme
		rewritten.Host = mapped.Public.Host
		rewritten.Path = mapped.Public.Path + strings.TrimPrefix(lu.Path, mapped.Internal.Path)

		flow.Response.Header.Set("Location", rewritten.String())
		return nil, nil
	})
}
