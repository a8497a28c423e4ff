package event

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSubscriber counts published security events by type. It runs
// until the bus closes its channel or Stop is called.
type MetricsSubscriber struct {
	counter *prometheus.CounterVec
	stop    func()
	done    chan struct{}
}

func NewMetricsSubscriber(reg prometheus.Registerer, bus Bus) *MetricsSubscriber {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterdash",
		Name:      "security_events_total",
		Help:      "Security events published on the in-process bus, by type.",
	}, []string{"type"})
	reg.MustRegister(counter)

	ch, unsubscribe := bus.Subscribe()
	s := &MetricsSubscriber{
		counter: counter,
		stop:    unsubscribe,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for e := range ch {
			counter.WithLabelValues(string(e.Type)).Inc()
		}
	}()
	return s
}

// Stop unsubscribes and waits for the consumer goroutine to drain.
func (s *MetricsSubscriber) Stop() {
	s.stop()
	<-s.done
}
