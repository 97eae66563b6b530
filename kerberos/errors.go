// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import "errors"

// Sentinel error kinds. Non-fatal kinds leave the flow's response untouched;
// ErrConfigurationInvalid is fatal at startup or reconfiguration.
var (
	ErrConfigurationInvalid = errors.New("kerberos: invalid configuration")
	ErrKeytabMissing        = errors.New("kerberos: keytab missing")
	ErrPrincipalUnresolved  = errors.New("kerberos: principal unresolved")
	ErrKinitFailed          = errors.New("kerberos: kinit failed")
	ErrSpnegoExchangeFailed = errors.New("kerberos: spnego exchange failed")
	ErrUpstreamIOError      = errors.New("kerberos: upstream retry request failed")
)
