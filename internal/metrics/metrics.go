// Package metrics exposes Prometheus instrumentation for the research
// pipeline. Imported for side effects by main; counters are updated from
// activities and the API layer, never from workflow code.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResearchStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "researchflow_research_started_total",
			Help: "Total number of research workflows started",
		},
	)

	ResearchCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_research_completed_total",
			Help: "Total number of research workflows completed",
		},
		[]string{"status"}, // done, failed, cancelled
	)

	AgentInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_agent_invocations_total",
			Help: "Total agent invocations by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	AgentInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "researchflow_agent_invocation_duration_seconds",
			Help:    "Agent invocation latency by role",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"role"},
	)

	AgentTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_agent_tokens_total",
			Help: "Tokens consumed by agent invocations",
		},
		[]string{"role"},
	)

	SearchesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_searches_total",
			Help: "Search items executed by outcome",
		},
		[]string{"outcome"}, // succeeded, failed
	)

	GatesAwaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "researchflow_clarification_gates_awaiting",
			Help: "Workflows currently suspended awaiting clarification answers",
		},
	)

	AnswerSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_answer_submissions_total",
			Help: "Clarification answer submissions by result",
		},
		[]string{"result"}, // accepted, rejected
	)

	PDFRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_pdf_renders_total",
			Help: "PDF render attempts by outcome",
		},
		[]string{"outcome"}, // succeeded, degraded
	)

	Illustrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researchflow_illustrations_total",
			Help: "Report illustration attempts by outcome",
		},
		[]string{"outcome"}, // succeeded, degraded
	)
)
