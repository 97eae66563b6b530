// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/martian/v3"
	"github.com/stretchr/testify/require"

	"github.com/saucelabs/forwarder-krb5/log"
)

// fakeNegotiator stands in for *TokenGenerator in end-to-end tests: it
// returns a canned Negotiate header instead of running a real GSSAPI
// exchange against a KDC.
type fakeNegotiator struct {
	calls atomic.Int64
}

func (f *fakeNegotiator) Negotiate(_ context.Context, _, _ string, principal Principal) (string, error) {
	f.calls.Add(1)
	return "Negotiate " + string(principal), nil
}

// newE2EPipeline builds a Pipeline backed by the fake kinit/klist scripts
// (for cache.Login) and a fakeNegotiator (for token generation), so a retry
// can complete successfully without a real KDC.
func newE2EPipeline(t *testing.T, cfg *Config) (*Pipeline, *fakeNegotiator) {
	t.Helper()

	cache, _ := newTestCache(t)
	tokens := &fakeNegotiator{}
	return NewPipeline(cfg, cache, tokens, http.DefaultTransport, nil, log.NopLogger), tokens
}

func proxyAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// TestPipelineSPNEGORetrySuccess drives a POST request through Modifier end
// to end: the upstream challenges the first attempt with 401/Negotiate, and
// the retried request must carry the original body (buffered in
// ModifyRequest) plus a Negotiate Authorization header.
func TestPipelineSPNEGORetrySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Negotiate ") {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
		w.Header().Set("WWW-Authenticate", "Negotiate")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Realm = "TEST.REALM"
	cfg.KeytabsPath = t.TempDir()
	p, tokens := newE2EPipeline(t, cfg)
	m := NewModifier(p)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	req.Header.Set("Proxy-Authorization", proxyAuthHeader("alice", "secret"))
	martian.TestContext(req, nil, nil) //nolint:errcheck // test helper, side effect only

	require.NoError(t, m.ModifyRequest(req))

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	resp.Request = req
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, m.ModifyResponse(resp))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "payload", string(body))
	require.Equal(t, int64(1), tokens.calls.Load())
}

// TestPipelineKNOXRedirectRetrySuccess exercises a GET redirected to a
// configured KNOX URL: the pipeline must retry with a Negotiate header and
// replace the redirect with the gateway's actual response.
func TestPipelineKNOXRedirectRetrySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Negotiate ") {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("welcome"))
			return
		}
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	knoxURL, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Realm = "TEST.REALM"
	cfg.KeytabsPath = t.TempDir()
	cfg.KNOXURLs = []*url.URL{knoxURL}
	p, tokens := newE2EPipeline(t, cfg)
	m := NewModifier(p)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Proxy-Authorization", proxyAuthHeader("alice", "secret"))
	martian.TestContext(req, nil, nil) //nolint:errcheck // test helper, side effect only

	require.NoError(t, m.ModifyRequest(req))

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	resp.Request = req
	resp.Header.Set("Location", srv.URL+"/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	require.NoError(t, m.ModifyResponse(resp))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "welcome", string(body))
	require.Equal(t, int64(1), tokens.calls.Load())
}
