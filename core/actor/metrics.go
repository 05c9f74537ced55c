package actor

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesHandled *prometheus.CounterVec
	messagesDropped *prometheus.CounterVec
	timerRuns       *prometheus.CounterVec
	handlerPanics   *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec) {
	handled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actor_messages_handled_total",
			Help: "Messages processed by actors",
		},
		[]string{"kind", "topic"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actor_messages_dropped_total",
			Help: "Messages discarded by actors",
		},
		[]string{"kind", "reason"},
	)
	timers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actor_timer_runs_total",
			Help: "Timer callbacks executed by actors",
		},
		[]string{"kind", "timer"},
	)
	panics := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actor_panics_total",
			Help: "Panics recovered in actor activations",
		},
		[]string{"kind"},
	)
	return handled, dropped, timers, panics
}

func init() {
	messagesHandled, messagesDropped, timerRuns, handlerPanics = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers actor metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesHandled, messagesDropped, timerRuns, handlerPanics)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	messagesHandled, messagesDropped, timerRuns, handlerPanics = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
