// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalsCreatedTotal tracks proposals appended to conversation ledgers
	ProposalsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "proposals",
			Name:      "created_total",
			Help:      "Total number of proposals created by kind",
		},
		[]string{"kind"},
	)

	// ProposalResponsesTotal tracks proposal decisions
	ProposalResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "proposals",
			Name:      "responses_total",
			Help:      "Total number of proposal responses by decision",
		},
		[]string{"decision"},
	)

	// ExchangeTransitionsTotal tracks committed exchange state changes
	ExchangeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "exchanges",
			Name:      "transitions_total",
			Help:      "Total number of exchange transitions by action and resulting status",
		},
		[]string{"action", "status"},
	)

	// TransitionConflictsTotal tracks conditional writes that lost a race
	TransitionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "exchanges",
			Name:      "transition_conflicts_total",
			Help:      "Conditional writes that found the row no longer in the expected state",
		},
		[]string{"action"},
	)

	// ConsensusOutcomesTotal tracks validation consensus results
	ConsensusOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "validation",
			Name:      "outcomes_total",
			Help:      "Validation report submissions by consensus outcome",
		},
		[]string{"outcome"},
	)

	// SideEffectsTotal tracks post-commit intent execution
	SideEffectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "settlement",
			Name:      "side_effects_total",
			Help:      "Executed side effects by intent and result",
		},
		[]string{"intent", "result"},
	)

	// BadgesGrantedTotal tracks badges granted for the first time
	BadgesGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "reputation",
			Name:      "badges_granted_total",
			Help:      "Badges granted by key",
		},
		[]string{"badge"},
	)

	// EventsPublishedTotal tracks domain events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Domain events published by type and result",
		},
		[]string{"type", "result"},
	)

	// SideEffectDuration tracks how long each intent takes
	SideEffectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "settlement",
			Name:      "side_effect_duration_seconds",
			Help:      "Duration of side effect execution in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"intent"},
	)
)
