package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Each server carries its own registry so multiple instances can coexist
// in one process.
func (s *Server) initMetrics() {
	s.metricsRegistry = prometheus.NewRegistry()

	s.connectionsTotal = promauto.With(s.metricsRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "picoircd_connections_total",
			Help: "Total number of accepted connections",
		},
	)

	s.messagesReceived = promauto.With(s.metricsRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "picoircd_messages_received_total",
			Help: "Total number of messages received from clients",
		},
	)

	s.messagesSent = promauto.With(s.metricsRegistry).NewCounter(
		prometheus.CounterOpts{
			Name: "picoircd_messages_sent_total",
			Help: "Total number of messages sent to clients",
		},
	)

	s.usersGauge = promauto.With(s.metricsRegistry).NewGauge(
		prometheus.GaugeOpts{
			Name: "picoircd_users",
			Help: "Number of registered users",
		},
	)

	s.channelsGauge = promauto.With(s.metricsRegistry).NewGauge(
		prometheus.GaugeOpts{
			Name: "picoircd_channels",
			Help: "Number of existing channels",
		},
	)
}

// MetricsRegistry exposes the server's Prometheus registry for scraping.
func (s *Server) MetricsRegistry() *prometheus.Registry {
	return s.metricsRegistry
}
