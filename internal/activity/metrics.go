package activity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "crimelab_activity_appended_total",
	Help: "Activity events appended to the log, by type",
}, []string{"type"})
