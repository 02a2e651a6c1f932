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

package materialize

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsMaterialize struct {
	once sync.Once

	saved       prometheus.Counter
	skipped     *prometheus.CounterVec // reason
	loadFailed  prometheus.Counter
	conflicts   prometheus.Gauge
	runDuration prometheus.Histogram
}

var matMetrics metricsMaterialize

func (m *metricsMaterialize) init() {
	m.once.Do(func() {
		m.saved = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_materialize_kernels_saved_total", Help: "Kernel files written"})
		m.skipped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kex_materialize_kernels_skipped_total", Help: "Kernels not written, by reason"}, []string{"reason"})
		m.loadFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_materialize_results_failed_total", Help: "Extraction artifacts that could not be loaded"})
		m.conflicts = prometheus.NewGauge(prometheus.GaugeOpts{Name: "kex_materialize_conflicts", Help: "Kernel names shared by several source files in the last run"})
		m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "kex_materialize_run_seconds", Help: "Materialization run duration", Buckets: prometheus.DefBuckets})

		prometheus.MustRegister(m.saved, m.skipped, m.loadFailed, m.conflicts, m.runDuration)
	})
}

func recordSaved()                { matMetrics.init(); matMetrics.saved.Inc() }
func recordSkipped(reason string) { matMetrics.init(); matMetrics.skipped.WithLabelValues(reason).Inc() }
func recordLoadFailed()           { matMetrics.init(); matMetrics.loadFailed.Inc() }

func recordRun(conflicts int, d time.Duration) {
	matMetrics.init()
	matMetrics.conflicts.Set(float64(conflicts))
	matMetrics.runDuration.Observe(d.Seconds())
}
