package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess           = "success"
	OutcomeUnknownEmail      = "unknown_email"
	OutcomeIncorrectPassword = "incorrect_password"
	OutcomeInvalidPassword   = "invalid_password"
	OutcomeEmailTaken        = "email_taken"
	OutcomeError             = "error"
)

// Metrics counts login and signup attempts by outcome.
type Metrics struct {
	LoginTotal  *prometheus.CounterVec
	SignupTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the authentication metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_login_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SignupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_signup_total",
				Help: "Total number of signup attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.LoginTotal)
	reg.MustRegister(m.SignupTotal)

	return m
}

func (m *Metrics) login(outcome string) {
	m.LoginTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) signup(outcome string) {
	m.SignupTotal.WithLabelValues(outcome).Inc()
}
