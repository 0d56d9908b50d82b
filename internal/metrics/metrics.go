// Package metrics exposes prometheus collectors for rooms and connections.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Rooms           prometheus.Gauge
	Connections     prometheus.Gauge
	Messages        *prometheus.CounterVec
	MessageDuration *prometheus.HistogramVec
	Broadcasts      *prometheus.CounterVec
	DroppedFrames   prometheus.Counter
	Failovers       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncroom_rooms",
			Help: "Rooms currently alive",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncroom_ws_connections",
			Help: "Open websocket connections",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncroom_ws_messages_total",
			Help: "Inbound websocket messages",
		}, []string{"type", "status"}),
		MessageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syncroom_ws_message_duration_seconds",
			Help:    "Inbound websocket message processing time",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncroom_broadcasts_total",
			Help: "Outbound room events",
		}, []string{"type"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_dropped_frames_total",
			Help: "Outbound frames dropped because a receiver was too slow",
		}),
		Failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncroom_failovers_total",
			Help: "Host promotions after the previous host left",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Rooms,
		m.Connections,
		m.Messages,
		m.MessageDuration,
		m.Broadcasts,
		m.DroppedFrames,
		m.Failovers,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
