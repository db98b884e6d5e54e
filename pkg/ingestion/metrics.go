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

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingestion subsystem.
type metricsIngestion struct {
	once sync.Once

	runsStarted   prometheus.Counter
	runsSucceeded prometheus.Counter
	runsFailed    prometheus.Counter
	buildRetries  prometheus.Counter
	nodesWritten  prometheus.Counter
	edgesWritten  prometheus.Counter

	stepDuration *prometheus.HistogramVec
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.runsStarted = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_runs_started_total", Help: "Ingestion runs started"})
		m.runsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_runs_succeeded_total", Help: "Ingestion runs that reached ready"})
		m.runsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_runs_failed_total", Help: "Ingestion runs that ended in error"})
		m.buildRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_build_retries_total", Help: "Graph rebuilds after an empty first build"})
		m.nodesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_nodes_written_total", Help: "Graph nodes written"})
		m.edgesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "quarry_ingest_edges_written_total", Help: "Graph edges written"})

		buckets := []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}
		m.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quarry_ingest_step_seconds",
			Help:    "Duration of ingestion steps",
			Buckets: buckets,
		}, []string{"step"})

		prometheus.MustRegister(
			m.runsStarted, m.runsSucceeded, m.runsFailed,
			m.buildRetries, m.nodesWritten, m.edgesWritten,
			m.stepDuration,
		)
	})
}

// record helpers - used by the orchestrator for metrics tracking
func recordRunStarted()   { ingMetrics.init(); ingMetrics.runsStarted.Inc() }
func recordRunSucceeded() { ingMetrics.init(); ingMetrics.runsSucceeded.Inc() }
func recordRunFailed()    { ingMetrics.init(); ingMetrics.runsFailed.Inc() }
func recordBuildRetry()   { ingMetrics.init(); ingMetrics.buildRetries.Inc() }

func recordGraphWritten(nodes, edges int) {
	ingMetrics.init()
	ingMetrics.nodesWritten.Add(float64(nodes))
	ingMetrics.edgesWritten.Add(float64(edges))
}

func observeStepDuration(step string, d time.Duration) {
	ingMetrics.init()
	ingMetrics.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}
