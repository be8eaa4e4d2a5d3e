package license

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var validationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "quill_license_validations",
	Help: "License validation outcomes",
}, []string{"outcome"})

var persistFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "quill_license_persist_failures",
	Help: "Failed license record writes after successful online validation",
})
