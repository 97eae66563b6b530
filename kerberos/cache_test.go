// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/saucelabs/forwarder-krb5/log"
)

// installFakeBin writes fake kinit/klist shell scripts to dir and prepends
// dir to PATH for the duration of the test.
func installFakeBin(t *testing.T, dir string) {
	t.Helper()

	klist := "#!/bin/sh\necho '   1 alice@TEST.REALM (DES cbc mode with CRC-32)'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "klist"), []byte(klist), 0o755))

	// The call log lets concurrency tests assert how many kinit subprocesses
	// actually ran, not just that Login succeeded.
	kinit := "#!/bin/sh\necho called >> \"$(dirname \"$0\")/kinit.calls\"\ntouch \"${KRB5CCNAME#FILE:}\"\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kinit"), []byte(kinit), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func newTestCache(t *testing.T) (*CredentialCache, string) {
	t.Helper()

	cache, ccacheDir, _ := newTestCacheWithBin(t)
	return cache, ccacheDir
}

// newTestCacheWithBin is like newTestCache but also returns the fake kinit/
// klist bin directory, so callers can inspect kinit.calls for concurrency
// assertions.
func newTestCacheWithBin(t *testing.T) (*CredentialCache, string, string) {
	t.Helper()

	bin := t.TempDir()
	installFakeBin(t, bin)

	ccacheDir := t.TempDir()
	t.Setenv("KRB5CCNAME", "DIR:"+ccacheDir)

	keytabs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(keytabs, "alice.keytab"), []byte("fake"), 0o644))

	cfg := DefaultConfig()
	cfg.Realm = "TEST.REALM"
	cfg.KeytabsPath = keytabs
	cfg.CacheExpiration = time.Hour

	return NewCredentialCache(cfg, nil, log.NopLogger), ccacheDir, bin
}

// countKinitCalls reports how many times the fake kinit script in bin was
// actually invoked.
func countKinitCalls(t *testing.T, bin string) int {
	t.Helper()

	b, err := os.ReadFile(filepath.Join(bin, "kinit.calls"))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return 0
	}
	return len(lines)
}

func TestCredentialCachePrincipalFor(t *testing.T) {
	cache, _ := newTestCache(t)

	p, err := cache.PrincipalFor(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, Principal("alice@TEST.REALM"), p)
}

func TestCredentialCachePrincipalForMissingKeytab(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.PrincipalFor(context.Background(), "bob")
	require.ErrorIs(t, err, ErrKeytabMissing)
}

func TestCredentialCacheLogin(t *testing.T) {
	cache, ccacheDir := newTestCache(t)

	require.False(t, cache.HasValidLogin("alice"))

	p, err := cache.Login(context.Background(), "alice", false)
	require.NoError(t, err)
	require.Equal(t, Principal("alice@TEST.REALM"), p)

	require.True(t, cache.HasValidLogin("alice"))
	require.FileExists(t, ccachePath(ccacheDir, p))
}

func TestCredentialCacheLoginReusesValidTicket(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Login(context.Background(), "alice", false)
	require.NoError(t, err)
	first := cache.entry("alice").lastKinit

	_, err = cache.Login(context.Background(), "alice", false)
	require.NoError(t, err)
	require.Equal(t, first, cache.entry("alice").lastKinit)
}

func TestCredentialCacheLoginRefreshForces(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Login(context.Background(), "alice", false)
	require.NoError(t, err)
	first := cache.entry("alice").lastKinit

	time.Sleep(2 * time.Millisecond)
	_, err = cache.Login(context.Background(), "alice", true)
	require.NoError(t, err)
	require.True(t, cache.entry("alice").lastKinit.After(first))
}

// TestCredentialCacheLoginConcurrentDedup hammers Login for the same
// username from many goroutines before any ticket is cached. Only the
// principal-lookup and rate-limiter wait may run concurrently; the kinit
// spawn itself must still happen at most once, per spec §4.2/§8's
// serializing-lock contract.
func TestCredentialCacheLoginConcurrentDedup(t *testing.T) {
	cache, ccacheDir, bin := newTestCacheWithBin(t)
	// The spawn-rate limiter throttles overall kinit throughput, a separate
	// concern from mutex-based dedup; disable it here so the assertion below
	// isolates dedup behavior instead of the limiter's burst size.
	cache.limiter = rate.NewLimiter(rate.Inf, 0)

	const n = 20
	var wg sync.WaitGroup
	principals := make([]Principal, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			principals[i], errs[i] = cache.Login(context.Background(), "alice", false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, Principal("alice@TEST.REALM"), principals[i])
	}

	require.True(t, cache.HasValidLogin("alice"))
	require.FileExists(t, ccachePath(ccacheDir, "alice@TEST.REALM"))
	require.Equal(t, 1, countKinitCalls(t, bin))
}

func TestCredentialCacheReconfigure(t *testing.T) {
	cache, _ := newTestCache(t)

	newKeytabs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(newKeytabs, "alice.keytab"), []byte("fake"), 0o644))

	cfg := DefaultConfig()
	cfg.Realm = "OTHER.REALM"
	cfg.KeytabsPath = newKeytabs
	cache.Reconfigure(cfg)

	st := cache.state.Load()
	require.Equal(t, "OTHER.REALM", st.realm)
	require.Equal(t, newKeytabs, st.keytabsPath)
}
