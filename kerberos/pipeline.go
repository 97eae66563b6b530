// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"net/http"

	"github.com/saucelabs/forwarder-krb5/log"
)

// Pipeline wires the detection filters, the host-mapping filters, and the
// retrier into the two hooks a host proxy calls on a flow's request and
// response path.
type Pipeline struct {
	requestFilters []Filter
	spnego         Filter
	knox           Filter
	redirectRemap  Filter
	retrier        *Retrier
	log            log.StructuredLogger
}

// NewPipeline builds a Pipeline from cfg. transport is the RoundTripper used
// to re-issue requests once a Kerberos retry is needed.
func NewPipeline(cfg *Config, cache *CredentialCache, tokens Negotiator, transport http.RoundTripper, metrics *Metrics, logger log.StructuredLogger) *Pipeline {
	return &Pipeline{
		requestFilters: []Filter{RemapRequestHosts(cfg.HostMappings)},
		spnego:         CheckSPNEGO(cfg, logger),
		knox:           CheckKNOX(cfg, logger),
		redirectRemap:  RemapRedirectResponseHosts(),
		retrier:        NewRetrier(transport, cache, tokens, metrics, logger),
		log:            logger,
	}
}

// ProcessRequest runs the request-path filters (currently just host
// remapping) over flow.
func (p *Pipeline) ProcessRequest(ctx context.Context, flow *Flow) error {
	for _, f := range p.requestFilters {
		if _, err := f.Apply(ctx, flow); err != nil {
			return err
		}
	}
	return nil
}

// ProcessResponse runs the detection filters over flow's response and, if
// either fires, retries the request once with a Kerberos token. A mapped
// redirect Location is always rewritten back to its public host, whether or
// not a retry happened, because host remapping is an independent concern
// from Kerberos detection.
func (p *Pipeline) ProcessResponse(ctx context.Context, flow *Flow) error {
	var trigger string

	if follow, err := p.spnego.Apply(ctx, flow); err != nil {
		return err
	} else if containsRetry(follow) {
		trigger = string(FilterIDSPNEGO)
	}

	if follow, err := p.knox.Apply(ctx, flow); err != nil {
		return err
	} else if containsRetry(follow) && trigger == "" {
		trigger = string(FilterIDKNOX)
	}

	if trigger != "" {
		// refresh is always false here: Login is idempotent when the cached
		// ticket is still valid, so calling it unconditionally rather than
		// gating on HasValidLogin is a cheap no-op in the common case.
		if err := p.retrier.Do(ctx, flow, trigger, false); err != nil {
			p.log.Warn("kerberos retry failed", "trigger", trigger, "error", err)
		}
	}

	if _, err := p.redirectRemap.Apply(ctx, flow); err != nil {
		return err
	}

	return nil
}

func containsRetry(ids []FilterID) bool {
	for _, id := range ids {
		if id == FilterIDRetry {
			return true
		}
	}
	return false
}
