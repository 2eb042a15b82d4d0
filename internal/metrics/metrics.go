package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_events_received_total",
		Help: "Engine events received from the log feed, by type",
	}, []string{"type"})

	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_events_dropped_total",
		Help: "Engine events dropped because the tracker queue was full",
	})

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiond_gateway_errors_total",
		Help: "Failed persistence gateway operations, by operation",
	}, []string{"op"})

	ConnectsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_connects_resolved_total",
		Help: "Connect events that resolved to a bound player session",
	})

	AliasesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_aliases_recorded_total",
		Help: "Alias rows inserted after deduplication",
	})

	MessagesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_messages_recorded_total",
		Help: "Chat messages persisted",
	})

	HeartbeatBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiond_heartbeat_batches_total",
		Help: "Bulk session touch batches issued",
	})

	BoundPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessiond_bound_players",
		Help: "Players currently bound in the session registry",
	})
)
