// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no test leaks a goroutine, in particular the
// SPNEGO negotiation worker goroutine spawned by TokenGenerator.Negotiate.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
