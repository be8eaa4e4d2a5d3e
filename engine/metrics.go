package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quill_engine_items_processed",
	Help: "Items submitted to the decision pipeline",
})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_engine_verdicts",
	Help: "Pipeline outcomes per item",
}, []string{"outcome"})

var actionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_engine_action_failures",
	Help: "Comment generation calls that did not complete",
}, []string{"kind"})

var decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "quill_engine_decision_duration_sec",
	Help: "Total duration of item decisions, network gates included",
})
