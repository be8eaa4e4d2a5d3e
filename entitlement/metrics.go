package entitlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checkCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_quota_checks",
	Help: "WithinLimits outcomes",
}, []string{"outcome"})

var refreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_quota_refreshes",
	Help: "Subscription endpoint fetches",
}, []string{"endpoint", "status"})

var fallbackEngaged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quill_quota_fallback_engaged",
	Help: "Quota checks answered from fallback caps instead of the entitlement service",
})

var actionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quill_quota_actions_recorded",
	Help: "Consumed actions recorded against quota",
})
