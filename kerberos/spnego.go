// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/spnego"

	"github.com/saucelabs/forwarder-krb5/log"
)

const defaultKRB5Conf = "/etc/krb5.conf"

// ccacheDir derives the DIR: directory this process manages subsidiary
// FILE: caches in, from the KRB5CCNAME environment contract validated by
// Config.Validate.
func ccacheDir(krb5ccname string) string {
	return strings.TrimPrefix(krb5ccname, "DIR:")
}

// ccachePath is the subsidiary FILE: cache path this package maintains for
// principal inside dir, one file per principal so multiple users' tickets
// coexist in the single configured DIR: directory.
func ccachePath(dir string, principal Principal) string {
	return filepath.Join(dir, "tkt_"+sanitizePrincipal(string(principal)))
}

func sanitizePrincipal(p string) string {
	return strings.NewReplacer("/", "_", "@", "_at_").Replace(p)
}

// TokenGenerator produces "Authorization: Negotiate <base64>" header values
// for a given (upstream host, principal) pair, reading the principal's
// ticket from the FILE: cache CredentialCache maintains for it.
type TokenGenerator struct {
	krb5conf *config.Config
	metrics  *Metrics
	log      log.StructuredLogger
}

// NewTokenGenerator loads the system krb5.conf (falling back to library
// defaults if absent, matching gokrb5's own tolerant behavior).
func NewTokenGenerator(metrics *Metrics, logger log.StructuredLogger) *TokenGenerator {
	krb5conf, err := config.Load(defaultKRB5Conf)
	if err != nil {
		krb5conf = config.New()
	}

	return &TokenGenerator{krb5conf: krb5conf, metrics: metrics, log: logger}
}

type negotiateResult struct {
	header string
	err    error
}

// Negotiate runs the blocking GSSAPI exchange for (upstreamHost, principal)
// on a dedicated goroutine, so the caller's goroutine only ever blocks on a
// single channel receive and promptly observes ctx cancellation.
func (g *TokenGenerator) Negotiate(ctx context.Context, ccname string, upstreamHost string, principal Principal) (string, error) {
	ch := make(chan negotiateResult, 1)

	start := time.Now()
	go func() {
		header, err := g.negotiate(ccname, upstreamHost, principal)
		ch <- negotiateResult{header: header, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if g.metrics != nil {
			g.metrics.observeSPNEGODuration(time.Since(start))
		}
		if r.err != nil {
			return "", fmt.Errorf("%w: %s", ErrSpnegoExchangeFailed, r.err)
		}
		return r.header, nil
	}
}

func (g *TokenGenerator) negotiate(ccname, upstreamHost string, principal Principal) (string, error) {
	cl, err := g.clientFor(ccname, principal)
	if err != nil {
		return "", err
	}
	defer cl.Destroy()

	spn := "HTTP/" + upstreamHost

	cli := spnego.SPNEGOClient(cl, spn)
	if err := cli.AcquireCred(); err != nil {
		return "", fmt.Errorf("acquire credential for %s: %w", spn, err)
	}

	secCtx, err := cli.InitSecContext()
	if err != nil {
		return "", fmt.Errorf("init security context for %s: %w", spn, err)
	}

	nb, err := secCtx.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal SPNEGO token: %w", err)
	}

	return "Negotiate " + base64.StdEncoding.EncodeToString(nb), nil
}

func (g *TokenGenerator) clientFor(ccname string, principal Principal) (*client.Client, error) {
	path := ccachePath(ccacheDir(ccname), principal)

	ccache, err := credentials.LoadCCache(path)
	if err != nil {
		return nil, fmt.Errorf("load ccache %s: %w", path, err)
	}

	cl, err := client.NewFromCCache(ccache, g.krb5conf)
	if err != nil {
		return nil, fmt.Errorf("build client from ccache %s: %w", path, err)
	}

	return cl, nil
}
