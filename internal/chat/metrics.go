package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently open client connections",
	})

	RegisteredClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_hub_registered_clients",
		Help: "Number of relays registered with the hub, including stale ones",
	})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_hub_events_total",
		Help: "Total hub events processed by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to process each hub event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Total protocol commands received by command name",
	}, []string{"command"})

	RelayDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_relay_dropped_total",
		Help: "Shouts not handed to a client because its relay flow had exited",
	})

	AcceptErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_accept_errors_total",
		Help: "Failed accept attempts by transport",
	}, []string{"transport"})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(RegisteredClients)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(RelayDropped)
	prometheus.MustRegister(AcceptErrors)
}
