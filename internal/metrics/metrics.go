package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mathrace",
		Name:      "rooms_created_total",
		Help:      "Rooms created since process start.",
	})
	RoomsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mathrace",
		Name:      "rooms_reaped_total",
		Help:      "Idle rooms removed by the sweeper.",
	})
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mathrace",
		Name:      "rooms_active",
		Help:      "Rooms currently registered.",
	})
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mathrace",
		Name:      "sessions_active",
		Help:      "Open player connections.",
	})
	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mathrace",
		Name:      "broadcast_dropped_total",
		Help:      "Messages dropped because a subscriber queue was full.",
	})
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathrace",
		Name:      "answers_total",
		Help:      "Answer submissions by result.",
	}, []string{"result"})
	RoundsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mathrace",
		Name:      "rounds_finished_total",
		Help:      "Rounds that reached the finished phase.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
