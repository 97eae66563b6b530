// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/saucelabs/forwarder-krb5/log"
)

// Principal is a Kerberos principal name, e.g. "alice@EXAMPLE.COM".
type Principal string

// cacheEntry tracks what CredentialCache knows about one proxy user: the
// principal their keytab resolves to, and when kinit last succeeded for it.
type cacheEntry struct {
	principal Principal
	lastKinit time.Time
}

// cacheState is the subset of Config that affects cache behavior, swapped
// atomically on Reconfigure so in-flight calls finish against a consistent
// snapshot.
type cacheState struct {
	keytabsPath string
	realm       string
	ccacheDir   string
	expiration  time.Duration
}

// CredentialCache maintains one FILE: ccache per proxy user inside the
// configured KRB5CCNAME DIR: directory, refreshing it with kinit when the
// cached ticket has expired or a caller asks for a forced refresh.
type CredentialCache struct {
	state   atomic.Pointer[cacheState]
	limiter *rate.Limiter

	mu      sync.Mutex
	entries map[string]*cacheEntry

	metrics *Metrics
	log     log.StructuredLogger
}

// NewCredentialCache builds a CredentialCache from cfg. kinit spawns are
// throttled to one per second with a burst of 5, so a thundering herd of
// expired tickets cannot fork-bomb the host.
func NewCredentialCache(cfg *Config, metrics *Metrics, logger log.StructuredLogger) *CredentialCache {
	c := &CredentialCache{
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		entries: make(map[string]*cacheEntry),
		metrics: metrics,
		log:     logger,
	}
	c.Reconfigure(cfg)
	return c
}

// Reconfigure atomically swaps the configuration snapshot new calls observe.
// Entries already resolved under the previous configuration are kept; a
// changed realm or keytabs path only affects principals resolved afterward.
func (c *CredentialCache) Reconfigure(cfg *Config) {
	c.state.Store(&cacheState{
		keytabsPath: cfg.KeytabsPath,
		realm:       cfg.Realm,
		ccacheDir:   ccacheDir(os.Getenv("KRB5CCNAME")),
		expiration:  cfg.CacheExpiration,
	})
}

func (c *CredentialCache) entry(username string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if !ok {
		e = &cacheEntry{}
		c.entries[username] = e
	}
	return e
}

// HasValidLogin reports whether username has an unexpired ticket, without
// triggering a kinit. The cache entry is read under lock: unlike the
// original's bare dict read, concurrent map access without synchronization
// is a data race under the Go memory model, not merely a benign race.
func (c *CredentialCache) HasValidLogin(username string) bool {
	st := c.state.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if !ok || e.principal == "" {
		return false
	}

	return time.Since(e.lastKinit) < st.expiration
}

// PrincipalFor resolves username's keytab to a Kerberos principal in st's
// realm, by asking klist to list the keytab's entries. The result is not
// cached here: callers needing memoization go through Login.
func (c *CredentialCache) PrincipalFor(ctx context.Context, username string) (Principal, error) {
	st := c.state.Load()
	keytab := filepath.Join(st.keytabsPath, username+".keytab")

	if _, err := os.Stat(keytab); err != nil {
		return "", fmt.Errorf("%w: %s", ErrKeytabMissing, keytab)
	}

	out, err := exec.CommandContext(ctx, "klist", "-kt", keytab).Output()
	if err != nil {
		return "", fmt.Errorf("%w: klist %s: %s", ErrPrincipalUnresolved, keytab, err)
	}

	suffix := "@" + st.realm
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		last := fields[len(fields)-1]
		if strings.HasSuffix(last, suffix) {
			return Principal(last), nil
		}
	}

	return "", fmt.Errorf("%w: no entry in %s for realm %s", ErrPrincipalUnresolved, keytab, st.realm)
}

// cachedPrincipal returns username's principal if it has already been
// resolved, without calling klist.
func (c *CredentialCache) cachedPrincipal(username string) (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if !ok || e.principal == "" {
		return "", false
	}
	return e.principal, true
}

// Login ensures username has a valid ticket, running kinit if refresh is set
// or the cached ticket (if any) has expired, and returns the principal the
// ticket was acquired for. Only the final validity check, the kinit spawn,
// and the entry update run under mu: resolving the principal (which shells
// out to klist) and waiting on the rate limiter happen beforehand without
// holding the lock, so a slow lookup or a throttled caller for one username
// never blocks Login for any other username.
func (c *CredentialCache) Login(ctx context.Context, username string, refresh bool) (Principal, error) {
	st := c.state.Load()

	principal, ok := c.cachedPrincipal(username)
	if !ok {
		p, err := c.PrincipalFor(ctx, username)
		if err != nil {
			return "", err
		}
		principal = p
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if !ok {
		e = &cacheEntry{}
		c.entries[username] = e
	}

	if !refresh && e.principal != "" && time.Since(e.lastKinit) < st.expiration {
		return e.principal, nil
	}

	if e.principal == "" {
		e.principal = principal
	}

	if err := c.kinit(ctx, st, username, e.principal); err != nil {
		c.metrics.observeKinit("error")
		return "", err
	}
	c.metrics.observeKinit("success")

	e.lastKinit = time.Now()
	return e.principal, nil
}

func (c *CredentialCache) kinit(ctx context.Context, st *cacheState, username string, principal Principal) error {
	keytab := filepath.Join(st.keytabsPath, username+".keytab")
	path := ccachePath(st.ccacheDir, principal)

	cmd := exec.CommandContext(ctx, "kinit", "-kt", keytab, string(principal))
	cmd.Env = append(os.Environ(), "KRB5CCNAME=FILE:"+path)

	out, err := cmd.CombinedOutput()
	if err != nil {
		c.log.Warn("kinit failed", "principal", principal, "error", err, "output", string(out))
		return fmt.Errorf("%w: %s", ErrKinitFailed, err)
	}

	c.log.Debug("kinit succeeded", "principal", principal, "ccache", path)
	return nil
}
