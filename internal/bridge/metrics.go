package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocbridge",
		Name:      "commands_total",
		Help:      "Bridge commands handled, by command and result.",
	}, []string{"command", "result"})
	metricForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocbridge",
		Name:      "forwarded_messages_total",
		Help:      "Raw chat messages auto-forwarded to attached sessions.",
	}, []string{"result"})
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ocbridge",
		Name:      "sessions_created_total",
		Help:      "Remote sessions created by the bridge.",
	})
)

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
