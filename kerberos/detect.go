// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/saucelabs/forwarder-krb5/log"
)

const (
	// FilterIDSPNEGO and FilterIDKNOX are the two detection filters.
	FilterIDSPNEGO FilterID = "check-spnego"
	FilterIDKNOX   FilterID = "check-knox"
	// FilterIDRetry is not a registered filter; it is the follow-up ID a
	// detection filter returns to signal that a Kerberos retry is needed.
	FilterIDRetry FilterID = "kerberos-retry"
)

func intSet(xs []int) map[int]struct{} {
	m := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

// CheckSPNEGO fires when the response's status is one of cfg.SPNEGOCodes and
// its WWW-Authenticate header is exactly "Negotiate" or has prefix
// "Negotiate ". It never mutates the flow.
func CheckSPNEGO(cfg *Config, logger log.StructuredLogger) Filter {
	codes := intSet(cfg.SPNEGOCodes)

	return NewFilter(FilterIDSPNEGO, func(_ context.Context, flow *Flow) ([]FilterID, error) {
		if flow.Response == nil {
			return nil, nil
		}
		if _, ok := codes[flow.Response.StatusCode]; !ok {
			logger.Debug("not SPNEGO, unknown HTTP code", "status", flow.Response.StatusCode)
			return nil, nil
		}

		wa := flow.Response.Header.Get("WWW-Authenticate")
		if wa != "Negotiate" && !strings.HasPrefix(wa, "Negotiate ") {
			logger.Debug("not SPNEGO, unexpected WWW-Authenticate", "value", wa)
			return nil, nil
		}

		return []FilterID{FilterIDRetry}, nil
	})
}

// CheckKNOX fires when the response is a GET-triggered redirect to a
// configured KNOX URL (matched by hostname, port, and path prefix; scheme is
// ignored by design). On a match it applies cfg.KNOXUserAgentOverride, if
// set, to the request before the retry runs.
func CheckKNOX(cfg *Config, logger log.StructuredLogger) Filter {
	codes := intSet(cfg.KNOXRedirectCodes)

	return NewFilter(FilterIDKNOX, func(_ context.Context, flow *Flow) ([]FilterID, error) {
		if flow.Response == nil {
			return nil, nil
		}
		if _, ok := codes[flow.Response.StatusCode]; !ok {
			logger.Debug("not KNOX, unknown HTTP code", "status", flow.Response.StatusCode)
			return nil, nil
		}
		if flow.Request.Method != http.MethodGet {
			logger.Debug("not KNOX, method is not GET", "method", flow.Request.Method)
			return nil, nil
		}

		loc := flow.Response.Header.Get("Location")
		if loc == "" {
			logger.Debug("not KNOX, missing Location header")
			return nil, nil
		}

		lu, err := url.Parse(loc)
		if err != nil {
			logger.Debug("not KNOX, invalid Location header", "location", loc, "error", err)
			return nil, nil
		}

		if !matchesKNOXURL(lu, cfg.KNOXURLs) {
			logger.Debug("not KNOX, no matching KNOX URL", "location", loc)
			return nil, nil
		}

		if cfg.KNOXUserAgentOverride != "" {
			flow.Request.Header.Set("User-Agent", cfg.KNOXUserAgentOverride)
		}

		return []FilterID{FilterIDRetry}, nil
	})
}

func matchesKNOXURL(u *url.URL, knoxURLs []*url.URL) bool {
	for _, k := range knoxURLs {
		if u.Hostname() == k.Hostname() && u.Port() == k.Port() && strings.HasPrefix(u.Path, k.Path) {
			return true
		}
	}
	return false
}
