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

package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsLLM struct {
	once sync.Once

	attempts *prometheus.CounterVec // backend, outcome
	retries  *prometheus.CounterVec
	absent   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var llmMetrics metricsLLM

func (m *metricsLLM) init() {
	m.once.Do(func() {
		m.attempts = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kex_llm_attempts_total", Help: "Backend calls by outcome"}, []string{"backend", "outcome"})
		m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kex_llm_retries_total", Help: "Retries after a failed backend call"}, []string{"backend"})
		m.absent = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kex_llm_absent_total", Help: "Generate calls that produced no text"}, []string{"backend"})

		buckets := []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "kex_llm_call_seconds", Help: "Duration of a single backend call", Buckets: buckets}, []string{"backend"})

		prometheus.MustRegister(m.attempts, m.retries, m.absent, m.duration)
	})
}

func recordAttempt(backend string, d time.Duration, err error) {
	llmMetrics.init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmMetrics.attempts.WithLabelValues(backend, outcome).Inc()
	llmMetrics.duration.WithLabelValues(backend).Observe(d.Seconds())
}

func recordRetry(backend string)  { llmMetrics.init(); llmMetrics.retries.WithLabelValues(backend).Inc() }
func recordAbsent(backend string) { llmMetrics.init(); llmMetrics.absent.WithLabelValues(backend).Inc() }
