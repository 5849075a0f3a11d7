package opencode

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocbridge",
	Name:      "remote_requests_total",
	Help:      "Requests sent to the OpenCode server by operation and result.",
}, []string{"op", "result"})

func observe(op string, err error) {
	metricRequests.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &statusErr):
		return "status"
	default:
		return "transport"
	}
}
