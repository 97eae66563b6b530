// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import "context"

// FilterID names a Filter so the pipeline driver can de-duplicate follow-up
// work by identity without relying on function-pointer comparison.
type FilterID string

// Filter is a single named step in the pipeline. Apply may mutate flow and
// returns the IDs of any follow-up filters that should also run for this
// flow, or an error that aborts the flow's processing.
type Filter interface {
	ID() FilterID
	Apply(ctx context.Context, flow *Flow) ([]FilterID, error)
}

// filterFunc adapts a plain function to the Filter interface.
type filterFunc struct {
	id    FilterID
	apply func(ctx context.Context, flow *Flow) ([]FilterID, error)
}

// NewFilter builds a Filter from id and apply.
func NewFilter(id FilterID, apply func(ctx context.Context, flow *Flow) ([]FilterID, error)) Filter {
	return &filterFunc{id: id, apply: apply}
}

func (f *filterFunc) ID() FilterID { return f.id }

func (f *filterFunc) Apply(ctx context.Context, flow *Flow) ([]FilterID, error) {
	return f.apply(ctx, flow)
}
