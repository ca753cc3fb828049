package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SuccessfulRequests *prometheus.CounterVec
	BadRequests        *prometheus.CounterVec
	CafesCreated       *prometheus.CounterVec
	CommentsPosted     *prometheus.CounterVec
	LoginFailures      *prometheus.CounterVec
}

// InitMetrics creates the counters and registers them on reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SuccessfulRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "successful_request",
				Help: "Total number of successful (2xx and 3xx) HTTP requests",
			},
			[]string{"path"},
		),
		BadRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unsuccessful_request",
				Help: "Total number of unsuccessful (4xx and 5xx) HTTP requests",
			},
			[]string{"path"},
		),
		CafesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cafes_created",
				Help: "Total number of cafes added",
			},
			[]string{"path"},
		),
		CommentsPosted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comments_posted",
				Help: "Total number of comments posted",
			},
			[]string{"path"},
		),
		LoginFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_failures",
				Help: "Total number of rejected login attempts",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(
		m.SuccessfulRequests,
		m.BadRequests,
		m.CafesCreated,
		m.CommentsPosted,
		m.LoginFailures,
	)

	return m
}

// Observe counts a finished request under name, split on status class.
func (m *Metrics) Observe(name string, status int) {
	if status >= http.StatusBadRequest {
		m.BadRequests.WithLabelValues(name).Inc()
		return
	}
	m.SuccessfulRequests.WithLabelValues(name).Inc()
}
