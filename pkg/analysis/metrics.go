// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kraklabs/inblock/pkg/syntax"
)

var tracer = otel.Tracer("inblock.analysis")

// metricsCache holds Prometheus metrics for the analysis cache.
type metricsCache struct {
	once sync.Once

	hits      prometheus.Counter
	misses    prometheus.Counter
	notReady  prometheus.Counter
	merges    prometheus.Counter
	evictions *prometheus.CounterVec
	analyses  *prometheus.CounterVec
	rebuilds  prometheus.Counter

	depth           prometheus.Histogram
	analyzeDuration prometheus.Histogram
	queryDuration   prometheus.Histogram
}

var cacheMetrics metricsCache

func (m *metricsCache) init() {
	m.once.Do(func() {
		m.hits = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_cache_hits_total", Help: "Queries served from a cached entry"})
		m.misses = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_cache_misses_total", Help: "Queries that required analysis"})
		m.notReady = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_cache_not_ready_total", Help: "Queries answered empty because the index was not ready"})
		m.merges = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_cache_merges_total", Help: "Pending scopes merged into the file result"})
		m.evictions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "inblock_cache_evictions_total", Help: "Cache entries evicted"}, []string{"reason"})
		m.analyses = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "inblock_cache_analyses_total", Help: "Analyzer calls by outcome"}, []string{"outcome"})
		m.rebuilds = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_cache_depth_rebuilds_total", Help: "Full re-analyses triggered by the depth bound"})

		m.depth = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "inblock_cache_merge_depth", Help: "Composite depth after a merge", Buckets: []float64{1, 2, 4, 8, 16, 32, 64}})
		buckets := []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
		m.analyzeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "inblock_cache_analyze_seconds", Help: "Duration of analyzer calls", Buckets: buckets})
		m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "inblock_cache_query_seconds", Help: "Duration of cache queries", Buckets: buckets})

		prometheus.MustRegister(
			m.hits, m.misses, m.notReady, m.merges, m.evictions, m.analyses, m.rebuilds,
			m.depth, m.analyzeDuration, m.queryDuration,
		)
	})
}

// record helpers
func recordHit() { cacheMetrics.init(); cacheMetrics.hits.Inc() }
func recordMiss() { cacheMetrics.init(); cacheMetrics.misses.Inc() }
func recordNotReady() { cacheMetrics.init(); cacheMetrics.notReady.Inc() }
func recordRebuild() { cacheMetrics.init(); cacheMetrics.rebuilds.Inc() }
func recordEvictions(reason string, n int) {
	if n == 0 {
		return
	}
	cacheMetrics.init()
	cacheMetrics.evictions.WithLabelValues(reason).Add(float64(n))
}

func recordMerge(depth int) {
	cacheMetrics.init()
	cacheMetrics.merges.Inc()
	cacheMetrics.depth.Observe(float64(depth))
}

func recordAnalysis(outcome string, d time.Duration) {
	cacheMetrics.init()
	cacheMetrics.analyses.WithLabelValues(outcome).Inc()
	cacheMetrics.analyzeDuration.Observe(d.Seconds())
}

func recordQuery(d time.Duration) {
	cacheMetrics.init()
	cacheMetrics.queryDuration.Observe(d.Seconds())
}

func startQuerySpan(ctx context.Context, file string, element syntax.NodeID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "FileCache.Result",
		trace.WithAttributes(
			attribute.String("inblock.file", file),
			attribute.String("inblock.element", element.String()),
		),
	)
}

func startAnalyzeSpan(ctx context.Context, file string, scope syntax.NodeID, kind syntax.Kind) (context.Context, trace.Span) {
	return tracer.Start(ctx, "FileCache.analyze",
		trace.WithAttributes(
			attribute.String("inblock.file", file),
			attribute.String("inblock.scope", scope.String()),
			attribute.String("inblock.scope_kind", kind.String()),
		),
	)
}
