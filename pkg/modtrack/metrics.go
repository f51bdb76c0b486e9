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

package modtrack

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsModtrack holds Prometheus metrics for change classification.
type metricsModtrack struct {
	once sync.Once

	classifications *prometheus.CounterVec
}

var mtMetrics metricsModtrack

func (m *metricsModtrack) init() {
	m.once.Do(func() {
		m.classifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inblock_modtrack_classifications_total",
			Help: "Structural edits by classification outcome",
		}, []string{"outcome"})

		prometheus.MustRegister(m.classifications)
	})
}

func recordClassification(o Outcome) {
	mtMetrics.init()
	mtMetrics.classifications.WithLabelValues(o.String()).Inc()
}
