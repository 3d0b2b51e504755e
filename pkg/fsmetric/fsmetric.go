// Copyright 2025 The DirentFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fsmetric defines filesystem metrics.
package fsmetric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	direntCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fs_dirent_cache_hits_total",
			Help: "Number of component lookups served from the dirent cache.",
		},
	)
	direntCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fs_dirent_cache_misses_total",
			Help: "Number of component lookups that fell through to the inode.",
		},
	)
	operationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fs_dirent_operation_latency_seconds",
			Help:    "The latency of dirent tree operations.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
		[]string{"operation"},
	)
	operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fs_dirent_operation_errors_total",
			Help: "Count of dirent tree operations returning errors.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		direntCacheHits,
		direntCacheMisses,
		operationLatency,
		operationErrors,
	)
}

// CacheHit records a children-cache hit.
func CacheHit() {
	direntCacheHits.Inc()
}

// CacheMiss records a children-cache miss.
func CacheMiss() {
	direntCacheMisses.Inc()
}

// RecordOp records the latency and outcome of a named operation.
func RecordOp(operation string, startAt time.Time, err error) {
	operationLatency.WithLabelValues(operation).Observe(time.Since(startAt).Seconds())
	if err != nil {
		operationErrors.WithLabelValues(operation).Inc()
	}
}
