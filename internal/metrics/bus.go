// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusDroppedTotal counts bus message drops by topic family and reason.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_bus_dropped_total",
		Help: "Total number of bus message drops by topic family and reason",
	}, []string{"topic", "reason"})

	// BusPublishedTotal counts published bus messages by topic family.
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_bus_published_total",
		Help: "Total number of bus messages published by topic family",
	}, []string{"topic"})
)

// topicFamily strips per-entity suffixes ("session/<id>" -> "session") so
// session ids never become label values.
func topicFamily(topic string) string {
	if topic == "" {
		return "unknown"
	}
	if i := strings.IndexByte(topic, '/'); i > 0 {
		return topic[:i]
	}
	return topic
}

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topicFamily(topic), reason).Inc()
}

// IncBusPublished records a published bus message.
func IncBusPublished(topic string) {
	BusPublishedTotal.WithLabelValues(topicFamily(topic)).Inc()
}
