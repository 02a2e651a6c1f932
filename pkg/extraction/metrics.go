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

package extraction

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsExtraction holds Prometheus metrics for the extraction stage.
type metricsExtraction struct {
	once sync.Once

	filesProcessed prometheus.Counter
	filesFailed    *prometheus.CounterVec // stage
	filesSkipped   prometheus.Counter
	kernels        prometheus.Counter
	missedKernels  prometheus.Counter
	inFlight       prometheus.Gauge

	fileDuration  prometheus.Histogram
	batchDuration prometheus.Histogram
}

var extMetrics metricsExtraction

func (m *metricsExtraction) init() {
	m.once.Do(func() {
		m.filesProcessed = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_extract_files_processed_total", Help: "Source files with a saved extraction result"})
		m.filesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kex_extract_files_failed_total", Help: "Source files that failed extraction, by stage"}, []string{"stage"})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_extract_files_skipped_total", Help: "Source files dropped by the marker re-check"})
		m.kernels = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_extract_kernels_total", Help: "Kernel records returned by the model"})
		m.missedKernels = prometheus.NewCounter(prometheus.CounterOpts{Name: "kex_extract_kernels_missed_total", Help: "Kernels found by the audit scan but absent from model output"})
		m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{Name: "kex_extract_in_flight", Help: "Files currently being extracted"})

		m.fileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "kex_extract_file_seconds", Help: "Per-file extraction duration", Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}})
		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "kex_extract_batch_seconds", Help: "Batch extraction duration", Buckets: prometheus.ExponentialBuckets(1, 4, 8)})

		prometheus.MustRegister(
			m.filesProcessed, m.filesFailed, m.filesSkipped,
			m.kernels, m.missedKernels, m.inFlight,
			m.fileDuration, m.batchDuration,
		)
	})
}

func recordFileDone(d time.Duration, kernels, missed int) {
	extMetrics.init()
	extMetrics.filesProcessed.Inc()
	extMetrics.kernels.Add(float64(kernels))
	extMetrics.missedKernels.Add(float64(missed))
	extMetrics.fileDuration.Observe(d.Seconds())
}

func recordFileFailed(stage string, d time.Duration) {
	extMetrics.init()
	extMetrics.filesFailed.WithLabelValues(stage).Inc()
	extMetrics.fileDuration.Observe(d.Seconds())
}

func recordSkipped(n int) { extMetrics.init(); extMetrics.filesSkipped.Add(float64(n)) }
func trackInFlight(delta float64) { extMetrics.init(); extMetrics.inFlight.Add(delta) }
func recordBatch(d time.Duration) { extMetrics.init(); extMetrics.batchDuration.Observe(d.Seconds()) }
