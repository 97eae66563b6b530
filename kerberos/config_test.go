// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Setenv("KRB5CCNAME", "DIR:/var/tmp/krb5cc")

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateMissingCCName(t *testing.T) {
	t.Setenv("KRB5CCNAME", "")

	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}

func TestConfigValidateFileCCName(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/krb5cc_1000")

	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationInvalid)
}

func TestConfigValidateRequiresRealmAndKeytabsPath(t *testing.T) {
	t.Setenv("KRB5CCNAME", "DIR:/var/tmp/krb5cc")

	cfg := DefaultConfig()
	cfg.Realm = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfigurationInvalid)

	cfg = DefaultConfig()
	cfg.KeytabsPath = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfigurationInvalid)
}

func TestParseIntList(t *testing.T) {
	got, err := ParseIntList("401, 403  407")
	require.NoError(t, err)
	assert.Equal(t, []int{401, 403, 407}, got)

	_, err = ParseIntList("401,notanumber")
	assert.Error(t, err)
}

func TestParseURLList(t *testing.T) {
	got, err := ParseURLList("https://knox1.example.com,https://knox2.example.com/gw")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "knox1.example.com", got[0].Hostname())
	assert.Equal(t, "/gw", got[1].Path)
}
