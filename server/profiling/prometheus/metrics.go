/*
 * Copyright 2025 The CollabNote Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/collabnote/collabnote/internal/version"
)

const (
	namespace  = "collabnote"
	frameLabel = "frame"
	taskLabel  = "task"
)

// Metrics manages the metric information that the server measures.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	connectionsTotal        prometheus.Counter
	activeSessions          prometheus.Gauge
	broadcastsTotal         *prometheus.CounterVec
	droppedFramesTotal      prometheus.Counter
	documentsInMemory       prometheus.Gauge
	flushedDocsTotal        prometheus.Counter
	housekeepingErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		connectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connections_total",
			Help:      "Total number of accepted connections.",
		}),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "active_sessions",
			Help:      "Number of currently connected sessions.",
		}),
		broadcastsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "broadcast_frames_total",
			Help:      "Total number of frames fanned out to subscribers.",
		}, []string{frameLabel}),
		droppedFramesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "dropped_frames_total",
			Help:      "Total number of outbound frames dropped because a session's send queue was full.",
		}),
		documentsInMemory: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "documents_in_memory",
			Help:      "Number of documents currently held in memory.",
		}),
		flushedDocsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "housekeeping",
			Name:      "flushed_documents_total",
			Help:      "Total number of documents persisted by the flush task.",
		}),
		housekeepingErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "housekeeping",
			Name:      "errors_total",
			Help:      "Total number of errors during housekeeping tasks.",
		}, []string{taskLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddConnection adds the number of accepted connections and sessions.
func (m *Metrics) AddConnection() {
	m.connectionsTotal.Inc()
	m.activeSessions.Inc()
}

// RemoveSession decreases the number of connected sessions.
func (m *Metrics) RemoveSession() {
	m.activeSessions.Dec()
}

// AddBroadcast adds the number of frames fanned out with the given tag.
func (m *Metrics) AddBroadcast(frame string, count int) {
	m.broadcastsTotal.With(prometheus.Labels{frameLabel: frame}).Add(float64(count))
}

// AddDroppedFrame adds the number of dropped outbound frames.
func (m *Metrics) AddDroppedFrame() {
	m.droppedFramesTotal.Inc()
}

// SetDocumentsInMemory sets the number of documents currently in memory.
func (m *Metrics) SetDocumentsInMemory(count int) {
	m.documentsInMemory.Set(float64(count))
}

// AddFlushedDocuments adds the number of documents persisted by the flush
// task.
func (m *Metrics) AddFlushedDocuments(count int) {
	m.flushedDocsTotal.Add(float64(count))
}

// AddHousekeepingError adds the number of errors of the given housekeeping
// task.
func (m *Metrics) AddHousekeepingError(task string) {
	m.housekeepingErrorsTotal.With(prometheus.Labels{taskLabel: task}).Inc()
}
