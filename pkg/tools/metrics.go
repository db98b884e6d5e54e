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

package tools

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsFanout struct {
	once sync.Once

	batches       prometheus.Counter
	questions     prometheus.Counter
	batchFailures prometheus.Counter
	batchDuration prometheus.Histogram
}

var fanMetrics metricsFanout

func (m *metricsFanout) init() {
	m.once.Do(func() {
		m.batches = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_query_batches_total", Help: "Question batches dispatched"})
		m.questions = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_query_questions_total", Help: "Questions dispatched"})
		m.batchFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_query_batch_failures_total", Help: "Batches that returned an error payload"})
		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quarry_query_batch_seconds",
			Help:    "Duration of successful batches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		})

		prometheus.MustRegister(m.batches, m.questions, m.batchFailures, m.batchDuration)
	})
}

func recordBatch(questions int) {
	fanMetrics.init()
	fanMetrics.batches.Inc()
	fanMetrics.questions.Add(float64(questions))
}

func recordBatchFailed() { fanMetrics.init(); fanMetrics.batchFailures.Inc() }

func observeBatchDuration(d time.Duration) {
	fanMetrics.init()
	fanMetrics.batchDuration.Observe(d.Seconds())
}
