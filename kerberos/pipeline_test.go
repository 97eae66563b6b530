// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saucelabs/forwarder-krb5/log"
)

func newTestPipeline(t *testing.T, cfg *Config) *Pipeline {
	t.Helper()

	cache := NewCredentialCache(cfg, nil, log.NopLogger)
	tokens := NewTokenGenerator(nil, log.NopLogger)
	return NewPipeline(cfg, cache, tokens, http.DefaultTransport, nil, log.NopLogger)
}

func TestPipelineProcessResponseNoTrigger(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	req, err := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
	require.NoError(t, err)

	res := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
	flow := NewFlow(req, res)

	require.NoError(t, p.ProcessResponse(context.Background(), flow))
	require.Same(t, res, flow.Response)
}

func TestPipelineProcessResponseTriggerWithoutProxyAuth(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	req, err := http.NewRequest(http.MethodGet, "http://example.com", http.NoBody)
	require.NoError(t, err)

	res := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     http.Header{"WWW-Authenticate": []string{"Negotiate"}},
	}
	flow := NewFlow(req, res)

	// No ProxyAuth metadata: the retry fails internally but the pipeline
	// swallows it (logs a warning) rather than aborting response processing.
	require.NoError(t, p.ProcessResponse(context.Background(), flow))
	require.Same(t, res, flow.Response)
}

func TestPipelineProcessRequestRemapsHosts(t *testing.T) {
	cfg := DefaultConfig()
	mappings, err := ParseHostMappings([]string{"http://public.example.com=http://internal.example.com:9000"})
	require.NoError(t, err)
	cfg.HostMappings = mappings

	p := newTestPipeline(t, cfg)

	req, err := http.NewRequest(http.MethodGet, "http://public.example.com/x", http.NoBody)
	require.NoError(t, err)
	flow := NewFlow(req, nil)

	require.NoError(t, p.ProcessRequest(context.Background(), flow))
	require.Equal(t, "internal.example.com:9000", flow.Request.URL.Host)
}
