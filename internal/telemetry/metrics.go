/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signage_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_api_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signage_api_active_connections",
		Help: "HTTP requests currently being served",
	})

	// Playback metrics
	RefreshTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_refresh_ticks_total",
		Help: "Content refresh ticks by outcome",
	}, []string{"outcome"}) // outcome=keep|replace|no_content|not_found|error|skipped

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signage_refresh_duration_seconds",
		Help:    "Time spent resolving a device and loading its playlist",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	PlaybackAdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_playback_advances_total",
		Help: "Item advances by media variant and trigger",
	}, []string{"variant", "reason"}) // reason=timer|ended|play_failed|error|unsupported

	PlaybackResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signage_playback_resets_total",
		Help: "Sessions reset to the first item after a playlist change",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signage_viewer_sessions_active",
		Help: "Playback sessions currently open",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signage_viewer_websocket_clients",
		Help: "Viewer websocket connections currently open",
	})

	DeviceTouchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signage_device_touch_failures_total",
		Help: "Best-effort last-active updates that failed",
	})

	// Storage metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signage_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_database_errors_total",
		Help: "Database operation errors",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signage_database_connections_active",
		Help: "Open database connections",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_cache_requests_total",
		Help: "Media cache lookups by result",
	}, []string{"result"}) // result=hit|miss|error

	EventBusMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_eventbus_messages_total",
		Help: "Distributed event bus messages by backend and direction",
	}, []string{"backend", "direction"}) // direction=published|received|dropped
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
