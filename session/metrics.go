package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loginCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_session_logins",
	Help: "Login attempts by outcome",
}, []string{"status"})

var refreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_session_refreshes",
	Help: "Token refresh attempts by outcome",
}, []string{"status"})
