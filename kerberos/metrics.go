// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package kerberos

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for the kerberos package. A
// nil *Metrics is valid everywhere it's used as a receiver guard, so callers
// that don't care about metrics can pass one through unchanged.
type Metrics struct {
	kinitTotal     *prometheus.CounterVec
	spnegoDuration prometheus.Histogram
	retryTotal     *prometheus.CounterVec
}

// NewMetrics registers the kerberos package's metrics on r, creating a fresh
// registry if r is nil, matching the teacher's newHTTPProxyMetrics pattern.
func NewMetrics(r prometheus.Registerer, namespace string) *Metrics {
	if r == nil {
		r = prometheus.NewRegistry()
	}
	f := promauto.With(r)

	return &Metrics{
		kinitTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kerberos",
			Name:      "kinit_total",
			Help:      "Number of kinit invocations by result.",
		}, []string{"result"}),
		spnegoDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kerberos",
			Name:      "spnego_negotiate_duration_seconds",
			Help:      "Duration of the SPNEGO token generation exchange.",
			Buckets:   prometheus.DefBuckets,
		}),
		retryTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kerberos",
			Name:      "retry_total",
			Help:      "Number of requests retried with a Kerberos token, by trigger and outcome.",
		}, []string{"trigger", "result"}),
	}
}

func (m *Metrics) observeKinit(result string) {
	if m == nil {
		return
	}
	m.kinitTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSPNEGODuration(d time.Duration) {
	if m == nil {
		return
	}
	m.spnegoDuration.Observe(d.Seconds())
}

func (m *Metrics) observeRetry(trigger, result string) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(trigger, result).Inc()
}
