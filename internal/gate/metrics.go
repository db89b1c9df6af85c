package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fraudgate_evaluations_total",
		Help: "Total signup evaluations by action taken",
	},
	[]string{"action"},
)
