// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package kerberos transparently upgrades upstream HTTP requests to use
// Kerberos (SPNEGO) authentication on behalf of an already Basic-authenticated
// proxy client, retrying a request when the upstream challenges it with
// SPNEGO or redirects it to a known identity gateway.
package kerberos

import (
	"net/http"
	"net/url"
)

// MetadataKey names a well-known entry in Flow.Metadata.
type MetadataKey string

const (
	// MetadataProxyAuth holds a *ProxyAuth that Modifier.ModifyRequest parses
	// from the request's Proxy-Authorization header. Read-only elsewhere.
	MetadataProxyAuth MetadataKey = "proxyauth"
	// MetadataMappedURLs holds a *MappedURLs set by the host-remap filter
	// on the request path and consumed by the redirect-rewrite filter on
	// the response path.
	MetadataMappedURLs MetadataKey = "mapped_urls"
)

// ProxyAuth is the client's Basic credentials, as seen by the host proxy.
type ProxyAuth struct {
	Username string
	Password string
}

// MappedURLs records which (public, internal) host mapping rewrote a
// request, so the corresponding response can be rewritten back.
type MappedURLs struct {
	Public   *url.URL
	Internal *url.URL
}

// Flow wraps one proxied request/response pair together with metadata
// filters use to coordinate. Request is always populated; Response is nil
// while the request-path filters run and is set before the response-path
// filters run. A filter may replace Response wholesale but must keep
// Request consistent with any side effects it performed.
type Flow struct {
	Request  *http.Request
	Response *http.Response
	Metadata map[MetadataKey]any
}

// NewFlow wraps req/res into a Flow with an empty metadata bag.
func NewFlow(req *http.Request, res *http.Response) *Flow {
	return &Flow{
		Request:  req,
		Response: res,
		Metadata: make(map[MetadataKey]any),
	}
}

// ProxyAuth returns the client's Basic credentials, if the host proxy
// recorded any.
func (f *Flow) ProxyAuth() (*ProxyAuth, bool) {
	v, ok := f.Metadata[MetadataProxyAuth].(*ProxyAuth)
	return v, ok
}

// MappedURLs returns the host mapping that rewrote this flow's request, if
// any.
func (f *Flow) MappedURLs() (*MappedURLs, bool) {
	v, ok := f.Metadata[MetadataMappedURLs].(*MappedURLs)
	return v, ok
}
