// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package httplog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

type requestIDKey struct{}

// WithRequestID stashes a short random identifier on the request context so
// that log lines for the same request can be correlated without depending
// on the proxy runtime's own session bookkeeping.
func WithRequestID(req *http.Request) *http.Request {
	if requestID(req) != "" {
		return req
	}
	return req.WithContext(context.WithValue(req.Context(), requestIDKey{}, newRequestID()))
}

func requestID(req *http.Request) string {
	id, _ := req.Context().Value(requestIDKey{}).(string)
	return id
}

func newRequestID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
