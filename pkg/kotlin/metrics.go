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

package kotlin

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsParse holds Prometheus metrics for the Kotlin front end.
type metricsParse struct {
	once sync.Once

	parses       prometheus.Counter
	syntaxErrors prometheus.Counter

	parseDuration prometheus.Histogram
}

var parseMetrics metricsParse

func (m *metricsParse) init() {
	m.once.Do(func() {
		m.parses = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_kotlin_parses_total", Help: "Kotlin files parsed"})
		m.syntaxErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "inblock_kotlin_syntax_errors_total", Help: "Syntax error nodes found while parsing"})

		buckets := []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "inblock_kotlin_parse_seconds", Help: "Kotlin parse and conversion duration", Buckets: buckets})

		prometheus.MustRegister(m.parses, m.syntaxErrors, m.parseDuration)
	})
}

func recordParse(d time.Duration, syntaxErrors int) {
	parseMetrics.init()
	parseMetrics.parses.Inc()
	parseMetrics.syntaxErrors.Add(float64(syntaxErrors))
	parseMetrics.parseDuration.Observe(d.Seconds())
}
