package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_intents_registered_total",
		Help: "The total number of registered intents",
	})

	IntentExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_intent_executions_total",
		Help: "The total number of intent execution attempts by outcome",
	}, []string{"outcome"})

	ExecutionTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_intent_execution_seconds",
		Help:    "Time taken to execute intents",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	StepsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_workflow_steps_total",
		Help: "The total number of dispatched workflow steps by opcode",
	}, []string{"opcode"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_status_transitions_total",
		Help: "The total number of intent status transitions",
	}, []string{"from", "to"})

	CollateralEscrowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_collateral_escrowed_total",
		Help: "Total collateral escrowed at registration",
	})

	CollateralWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_collateral_withdrawn_total",
		Help: "Total collateral paid back out of terminal intents",
	})

	KeeperFeesPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_keeper_fees_paid_total",
		Help: "Total keeper fees paid on successful executions",
	})

	TriggerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_trigger_rejections_total",
		Help: "The number of executions aborted by an unsatisfied trigger",
	})

	HashMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_plan_hash_mismatches_total",
		Help: "The number of executions aborted by a plan hash mismatch",
	})

	BreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_execute_breaker_trips_total",
		Help: "Circuit breaker trips on the execute endpoint",
	})
)
