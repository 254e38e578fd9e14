package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeSuspended          = "suspended"
	OutcomeInvalid            = "invalid"
	OutcomeConflict           = "conflict"
	OutcomeError              = "error"
)

// Metrics counts authentication outcomes. A nil *Metrics records nothing.
type Metrics struct {
	signIns       *prometheus.CounterVec
	lockouts      *prometheus.CounterVec
	registrations *prometheus.CounterVec
	provisions    *prometheus.CounterVec
}

// NewMetrics registers the identity collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		signIns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "identity",
				Name:      "signin_total",
				Help:      "Sign-in attempts by principal class and outcome.",
			},
			[]string{"class", "outcome"},
		),
		lockouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "identity",
				Name:      "lockouts_total",
				Help:      "Accounts locked after crossing the failure threshold.",
			},
			[]string{"class"},
		),
		registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "identity",
				Name:      "registrations_total",
				Help:      "Shopper registrations by outcome.",
			},
			[]string{"outcome"},
		),
		provisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "identity",
				Name:      "provisions_total",
				Help:      "Administrator provisioning by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) signIn(class Class, outcome string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(string(class), outcome).Inc()
}

func (m *Metrics) lockout(class Class) {
	if m == nil {
		return
	}
	m.lockouts.WithLabelValues(string(class)).Inc()
}

func (m *Metrics) registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) provision(outcome string) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
}

// outcomeOf maps a service error to its metric label.
func outcomeOf(err error) string {
	switch KindOf(err) {
	case nil:
		return OutcomeSuccess
	case ErrInvalidCredentials:
		return OutcomeInvalidCredentials
	case ErrAccountLocked:
		return OutcomeLocked
	case ErrAccountSuspended:
		return OutcomeSuspended
	case ErrInvalidInput:
		return OutcomeInvalid
	case ErrUsernameExists, ErrConflict:
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
