// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saucelabs/forwarder-krb5/validation"
)

// Config holds the detection and credential-cache tuning knobs. The proxy
// command validates it once, at startup. CredentialCache.Reconfigure does not
// call Validate, and no signal handler reloads or re-validates it.
type Config struct {
	Realm                 string `validate:"required"`
	SPNEGOCodes           []int
	KNOXURLs              []*url.URL
	KNOXRedirectCodes     []int
	KNOXUserAgentOverride string
	KeytabsPath           string `validate:"required"`
	CacheExpiration       time.Duration
	HostMappings          []HostMapping
}

// DefaultConfig returns the documented defaults (see cmd/forwarder flags).
func DefaultConfig() *Config {
	return &Config{
		Realm:                 "LOCALHOST",
		SPNEGOCodes:           []int{http.StatusUnauthorized},
		KNOXRedirectCodes:     []int{http.StatusFound},
		KNOXUserAgentOverride: "curl/7.61.1",
		KeytabsPath:           "/etc/security/keytabs/",
		CacheExpiration:       12 * time.Hour,
	}
}

// Validate checks struct-tag constraints and the KRB5CCNAME environment
// contract this package depends on: it must be set and must name a DIR:
// cache directory (gokrb5's FILE: ccache reader is used internally, see
// spnego.go, but the externally observable contract stays DIR:).
func (c *Config) Validate() error {
	if err := validation.Validator().Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrConfigurationInvalid, err)
	}

	ccname := os.Getenv("KRB5CCNAME")
	if !strings.HasPrefix(ccname, "DIR:") {
		return fmt.Errorf("%w: KRB5CCNAME must be set and start with DIR:", ErrConfigurationInvalid)
	}

	for _, m := range c.HostMappings {
		if m.Public == nil || m.Internal == nil {
			return fmt.Errorf("%w: host mapping missing public or internal URL", ErrConfigurationInvalid)
		}
	}

	return nil
}

// ParseIntList parses a comma-separated list of integers, as used for
// kerberos-spnego-codes/kerberos-knox-codes. Mirrors the original's
// env_to_list/string_to_list helper.
func ParseIntList(s string) ([]int, error) {
	fields := splitList(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseURLList parses a comma-separated list of URLs, as used for
// kerberos-knox-urls.
func ParseURLList(s string) ([]*url.URL, error) {
	fields := splitList(s)
	out := make([]*url.URL, 0, len(fields))
	for _, f := range fields {
		u, err := url.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", f, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return fields
}
