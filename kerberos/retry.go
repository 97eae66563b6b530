// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/saucelabs/forwarder-krb5/log"
)

// Negotiator produces an "Authorization: Negotiate <base64>" header value for
// a (upstream host, principal) pair. *TokenGenerator is the production
// implementation; tests substitute a fake to exercise Retrier without a real
// KDC.
type Negotiator interface {
	Negotiate(ctx context.Context, ccname, upstreamHost string, principal Principal) (string, error)
}

// Retrier re-issues a flow's request with a Kerberos Negotiate header once a
// detection filter has identified that the upstream wants one. Its
// *http.Client is built once and reused across calls: unlike a per-call
// client, Go's http.Client is designed to be pooled and reused, and it rides
// on the host proxy's own transport so TLS sessions and connections stay
// shared with ordinary traffic.
type Retrier struct {
	client  *http.Client
	cache   *CredentialCache
	tokens  Negotiator
	metrics *Metrics
	log     log.StructuredLogger
}

// NewRetrier builds a Retrier that re-issues requests over transport.
func NewRetrier(transport http.RoundTripper, cache *CredentialCache, tokens Negotiator, metrics *Metrics, logger log.StructuredLogger) *Retrier {
	return &Retrier{
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		cache:   cache,
		tokens:  tokens,
		metrics: metrics,
		log:     logger,
	}
}

// Do logs the flow's proxy user in (refresh forces a fresh kinit even if the
// cached ticket is still valid), negotiates a token for the request's host,
// reissues the request with an Authorization header carrying that token, and
// replaces flow.Response with the retried response.
func (r *Retrier) Do(ctx context.Context, flow *Flow, trigger string, refresh bool) error {
	auth, ok := flow.ProxyAuth()
	if !ok || auth.Username == "" {
		r.metrics.observeRetry(trigger, "no_proxy_auth")
		return fmt.Errorf("%w: no proxy-authenticated user on flow", ErrPrincipalUnresolved)
	}

	principal, err := r.cache.Login(ctx, auth.Username, refresh)
	if err != nil {
		r.metrics.observeRetry(trigger, "login_failed")
		return err
	}

	ccname, err := r.krb5ccname()
	if err != nil {
		r.metrics.observeRetry(trigger, "ccache_unconfigured")
		return err
	}

	header, err := r.tokens.Negotiate(ctx, ccname, flow.Request.URL.Hostname(), principal)
	if err != nil {
		r.metrics.observeRetry(trigger, "negotiate_failed")
		return err
	}

	retryReq := flow.Request.Clone(ctx)
	if retryReq.GetBody != nil {
		b, err := retryReq.GetBody()
		if err != nil {
			r.metrics.observeRetry(trigger, "upstream_error")
			return fmt.Errorf("%w: rebuilding request body: %s", ErrUpstreamIOError, err)
		}
		retryReq.Body = b
	}
	retryReq.Header.Set("Authorization", header)
	if retryReq.Header.Get("Accept-Encoding") == "" {
		retryReq.Header.Set("Accept-Encoding", "")
	}

	resp, err := r.client.Do(retryReq)
	if err != nil {
		r.metrics.observeRetry(trigger, "upstream_error")
		return fmt.Errorf("%w: %s", ErrUpstreamIOError, err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.metrics.observeRetry(trigger, "upstream_error")
		return fmt.Errorf("%w: reading retried response body: %s", ErrUpstreamIOError, err)
	}

	resp.Header.Del("WWW-Authenticate")
	resp.Header.Del("Transfer-Encoding")
	resp.Header.Del("Content-Encoding")
	if len(body) > 0 {
		resp.Header.Set("Content-Length", fmt.Sprint(len(body)))
	} else {
		resp.Header.Del("Content-Length")
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	flow.Response = resp
	r.metrics.observeRetry(trigger, "success")
	return nil
}

func (r *Retrier) krb5ccname() (string, error) {
	st := r.cache.state.Load()
	if st.ccacheDir == "" {
		return "", fmt.Errorf("%w: KRB5CCNAME not configured", ErrConfigurationInvalid)
	}
	return "DIR:" + st.ccacheDir, nil
}
