// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/martian/v3"

	"github.com/saucelabs/forwarder-krb5/middleware"
)

const flowContextKey = "kerberos-flow"

// Modifier adapts a Pipeline to martian's RequestModifier/ResponseModifier
// interfaces, stashing the Flow built on the request path in the martian
// per-connection context so the response path can find it again.
type Modifier struct {
	pipeline *Pipeline
}

// NewModifier builds a Modifier wrapping pipeline.
func NewModifier(pipeline *Pipeline) *Modifier {
	return &Modifier{pipeline: pipeline}
}

// ModifyRequest builds a Flow for req, records the client's Proxy-Authorization
// credentials on it (left in place for downstream modifiers; this package
// only reads them), buffers the request body so a Kerberos retry can replay
// it after the first upstream attempt has drained it, and runs the
// pipeline's request-path filters.
func (m *Modifier) ModifyRequest(req *http.Request) error {
	if err := bufferBody(req); err != nil {
		return err
	}

	flow := NewFlow(req, nil)

	if user, pass, ok := middleware.NewProxyBasicAuth().BasicAuth(req); ok {
		flow.Metadata[MetadataProxyAuth] = &ProxyAuth{Username: user, Password: pass}
	}

	mctx := martian.NewContext(req)
	mctx.Set(flowContextKey, flow)

	return m.pipeline.ProcessRequest(req.Context(), flow)
}

// bufferBody reads req.Body into memory and installs a GetBody that replays
// it, so req can be sent to the first upstream attempt and then, if a
// Kerberos retry is needed, resent with a fresh, unconsumed body. req.Clone
// copies the GetBody func but not a fresh Body reader, so callers that retry
// a cloned request must invoke GetBody themselves.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

// ModifyResponse retrieves the Flow ModifyRequest recorded for res.Request and
// runs the pipeline's response-path filters, possibly replacing res's fields
// wholesale via the retrier. Martian ignores a ResponseModifier's ability to
// swap *http.Response outright, so instead of reassigning *res we copy the
// replacement response's fields onto it in place.
func (m *Modifier) ModifyResponse(res *http.Response) error {
	mctx := martian.NewContext(res.Request)
	v, ok := mctx.Get(flowContextKey)
	if !ok {
		return nil
	}
	flow := v.(*Flow)
	flow.Response = res

	if err := m.pipeline.ProcessResponse(res.Request.Context(), flow); err != nil {
		return err
	}

	if flow.Response != res {
		copyResponse(res, flow.Response)
	}

	return nil
}

func copyResponse(dst, src *http.Response) {
	dst.Status = src.Status
	dst.StatusCode = src.StatusCode
	dst.Proto = src.Proto
	dst.ProtoMajor = src.ProtoMajor
	dst.ProtoMinor = src.ProtoMinor
	dst.Header = src.Header
	dst.Body = src.Body
	dst.ContentLength = src.ContentLength
	dst.TransferEncoding = src.TransferEncoding
	dst.Close = src.Close
	dst.Uncompressed = src.Uncompressed
	dst.Trailer = src.Trailer
}
