package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_events_published_total",
		Help: "Total number of events published on the bus, labelled by topic.",
	}, []string{"topic"})

	HandlerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamkit_handler_panics_total",
		Help: "Total number of subscriber panics recovered by the bus.",
	})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamkit_broadcast_dropped_total",
		Help: "Total number of broadcast frames dropped by slow or failed sinks.",
	})

	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_commands_handled_total",
		Help: "Total number of recognized chat commands, labelled by outcome.",
	}, []string{"outcome"})

	ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_moderation_verdicts_total",
		Help: "Total number of moderation verdicts, labelled by action.",
	}, []string{"action"})

	AutomationsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_automations_matched_total",
		Help: "Total number of automation rule matches, labelled by rule ID.",
	}, []string{"rule_id"})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_actions_executed_total",
		Help: "Total number of actions executed, labelled by type and status.",
	}, []string{"action_type", "status"})

	ChainsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamkit_chains_dropped_total",
		Help: "Total number of action chains rejected due to a full pool queue.",
	})

	ChatHandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamkit_chat_handle_duration_ms",
		Help:    "Chat line handling latency (moderation + dispatch) in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
