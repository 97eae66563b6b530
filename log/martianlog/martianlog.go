// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package martianlog

import (
	martianlog "github.com/google/martian/v3/log"
	"github.com/saucelabs/forwarder-krb5/log"
)

// SetLogger routes martian's package level debug logging through l.
func SetLogger(l log.Logger) {
	martianlog.SetLogger(l)
}
